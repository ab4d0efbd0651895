// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
)

const podmanVersionFormat = "{{.Version}}"

// selinuxEnforcePath is read to decide whether volumes need relabeling.
var selinuxEnforcePath = "/sys/fs/selinux/enforce"

// PodmanEngine implements Engine with the podman CLI. Volumes are relabeled
// on SELinux hosts and rootless runs keep the caller's uid so files written
// into the staging mount stay owned by the user.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a podman engine.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman")
	base := []BaseCLIEngineOption{
		WithName(string(EngineTypePodman)),
		WithVolumeFormatter(selinuxVolumeFormatter(isSELinuxEnabled)),
		WithRunArgsTransformer(keepUserNamespace),
	}
	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, append(base, opts...)...),
	}
}

// Name returns "podman".
func (e *PodmanEngine) Name() string {
	return string(EngineTypePodman)
}

// Available reports whether podman answers a version query.
func (e *PodmanEngine) Available() bool {
	return e.available(podmanVersionFormat)
}

// Version returns the podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", podmanVersionFormat)
	if err != nil {
		return "", fmt.Errorf("failed to get podman version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func isSELinuxEnabled() bool {
	data, err := os.ReadFile(selinuxEnforcePath)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// selinuxVolumeFormatter adds the shared label to unlabeled mounts when
// enabled reports true.
func selinuxVolumeFormatter(enabled func() bool) VolumeFormatFunc {
	return func(v VolumeMount) VolumeMount {
		if v.SELinux == SELinuxLabelNone && enabled() {
			v.SELinux = SELinuxLabelShared
		}
		return v
	}
}

// keepUserNamespace inserts --userns=keep-id right after "run".
func keepUserNamespace(args []string) []string {
	if len(args) == 0 || args[0] != "run" || slices.ContainsFunc(args, func(a string) bool {
		return strings.HasPrefix(a, "--userns")
	}) {
		return args
	}
	return slices.Insert(slices.Clone(args), 1, "--userns=keep-id")
}
