// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/layermake/layermake/internal/container"
	"github.com/layermake/layermake/internal/stage"
	"github.com/layermake/layermake/internal/testutil"
)

type (
	fakeEngine struct {
		builds       []container.BuildOptions
		runs         []container.RunOptions
		removed      []container.ImageRef
		buildRef     container.ImageRef
		buildErr     error
		runExitCode  int
		runErr       error
		writeArchive bool
	}

	spyCleaner struct {
		calls [][]string
		inner Cleaner
	}
)

func (f *fakeEngine) Name() string {
	return "docker"
}

func (f *fakeEngine) Available() bool {
	return true
}

func (f *fakeEngine) Version(context.Context) (string, error) {
	return "27.0.0", nil
}

func (f *fakeEngine) Remove(context.Context, container.ContainerID, bool) error {
	return nil
}

func (f *fakeEngine) CopyFrom(context.Context, container.ContainerID, string, string) error {
	return nil
}

func (f *fakeEngine) ImageExists(context.Context, container.ImageRef) (bool, error) {
	return true, nil
}

func (f *fakeEngine) Build(_ context.Context, opts container.BuildOptions) (container.ImageRef, error) {
	f.builds = append(f.builds, opts)
	if f.buildErr != nil {
		return "", f.buildErr
	}
	return f.buildRef, nil
}

// Run records opts and, when writeArchive is set, drops a layer.zip into the
// mounted staging directory like a real zip step would.
func (f *fakeEngine) Run(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
	f.runs = append(f.runs, opts)
	if f.runErr != nil {
		return nil, f.runErr
	}
	if f.writeArchive && f.runExitCode == 0 && len(opts.Volumes) > 0 {
		if err := os.WriteFile(filepath.Join(opts.Volumes[0].HostPath, ArchiveName), []byte("PK"), 0o644); err != nil {
			return nil, err
		}
	}
	return &container.RunResult{ExitCode: f.runExitCode}, nil
}

func (f *fakeEngine) RemoveImage(_ context.Context, image container.ImageRef, _ bool) error {
	f.removed = append(f.removed, image)
	return nil
}

func (f *fakeEngine) lastCommand(t *testing.T) string {
	t.Helper()
	if len(f.runs) == 0 {
		t.Fatal("container was never run")
	}
	cmd := f.runs[len(f.runs)-1].Command
	if len(cmd) != 3 || cmd[0] != "/bin/bash" || cmd[1] != "-c" {
		t.Fatalf("unexpected container command %q", cmd)
	}
	return cmd[2]
}

func (s *spyCleaner) Clean(paths []string) (int, error) {
	s.calls = append(s.calls, paths)
	if s.inner == nil {
		return len(paths), nil
	}
	return s.inner.Clean(paths)
}

// newSpy returns a spy that really removes paths.
func newSpy() *spyCleaner {
	return &spyCleaner{inner: stage.New(testutil.NewRecordingLogger())}
}

// stagingDir returns a not yet existing staging path inside a temp dir.
func stagingDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "layer")
}
