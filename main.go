// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/layermake/layermake/cmd/layermake"

func main() {
	cmd.Execute()
}
