// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"github.com/schollz/progressbar/v3"
)

// spinnerStatus renders an indeterminate progressbar spinner. It has no
// ticker goroutine: the owning Console advances it on every record.
type spinnerStatus struct {
	console *Console
	bar     *progressbar.ProgressBar
}

func newSpinnerStatus(c *Console, msg string) *spinnerStatus {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription(msg),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
	)
	_ = bar.RenderBlank()
	return &spinnerStatus{console: c, bar: bar}
}

func (s *spinnerStatus) Update(msg string) {
	s.console.mu.Lock()
	defer s.console.mu.Unlock()
	s.bar.Describe(msg)
	s.tick()
}

func (s *spinnerStatus) Done() {
	s.console.mu.Lock()
	defer s.console.mu.Unlock()
	if s.console.active != s {
		return
	}
	_ = s.bar.Finish()
	s.console.active = nil
}

// clear and tick expect the console mutex to be held.
func (s *spinnerStatus) clear() { _ = s.bar.Clear() }

func (s *spinnerStatus) tick() { _ = s.bar.Add(1) }
