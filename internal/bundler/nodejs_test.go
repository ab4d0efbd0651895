// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/layermake/layermake/internal/testutil"
)

func TestNode_PackageArtifact(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "mymod")
	testutil.MustWriteFile(t, filepath.Join(dir, "package.json"), `{"name":"mymod"}`)
	testutil.MustWriteFile(t, filepath.Join(dir, "index.js"), "")

	st, plan := planFor(t, Config{}, &Node{Runtime: "16", ArtifactDir: dir})

	want := []string{"pushd nodejs/node_modules/mymod; npm install --prefix ../../; popd"}
	if !slices.Equal(plan.Script.Fragments(), want) {
		t.Errorf("fragments = %q, want %q", plan.Script.Fragments(), want)
	}
	for _, p := range []string{"nodejs/mymod/index.js", "nodejs/node_modules/mymod/package.json"} {
		if !testutil.Exists(st.Path(p)) {
			t.Errorf("%s missing", p)
		}
	}
	if plan.Image != "public.ecr.aws/sam/build-nodejs16.x:latest" {
		t.Errorf("Image = %q", plan.Image)
	}
}

func TestNode_PlainArtifact(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "assets")
	testutil.MustWriteFile(t, filepath.Join(dir, "data.json"), "{}")

	st, plan := planFor(t, Config{}, &Node{Runtime: "14.x", ArtifactDir: dir})

	if !plan.Script.Empty() {
		t.Errorf("no install expected, got %q", plan.Script.String())
	}
	if !testutil.Exists(st.Path("src", "data.json")) {
		t.Error("contents not copied into src/")
	}
	if !slices.Contains(plan.Cleanup, st.Path("src")) {
		t.Errorf("src/ not registered: %v", plan.Cleanup)
	}
}

func TestNode_ManifestAndPackages(t *testing.T) {
	t.Parallel()

	manifest := filepath.Join(t.TempDir(), "package.json")
	testutil.MustWriteFile(t, manifest, "{}")

	st, plan := planFor(t, Config{Artifact: manifest}, &Node{Runtime: "nodejs18", Packages: []string{"lodash", "@aws-sdk/client-s3"}})

	want := "pushd nodejs; npm install; npm install --save lodash @aws-sdk/client-s3; popd"
	if got := plan.Script.String(); got != want {
		t.Errorf("script = %q, want %q", got, want)
	}
	if !testutil.Exists(st.Path("nodejs", "package.json")) {
		t.Error("manifest not moved into nodejs/")
	}
	if testutil.Exists(st.Path("package.json")) {
		t.Error("manifest left in staging root")
	}
	if plan.Image != "public.ecr.aws/sam/build-nodejs18.x:latest" {
		t.Errorf("Image = %q", plan.Image)
	}
}

func TestNode_ManifestRenamedToPackageJSON(t *testing.T) {
	t.Parallel()

	manifest := filepath.Join(t.TempDir(), "deps.json")
	testutil.MustWriteFile(t, manifest, `{"dependencies":{"lodash":"^4"}}`)

	st, _ := planFor(t, Config{Artifact: manifest}, &Node{Runtime: "16"})

	data, err := os.ReadFile(st.Path("nodejs", "package.json"))
	if err != nil || !strings.Contains(string(data), "lodash") {
		t.Errorf("nodejs/package.json = %q, %v", data, err)
	}
	if testutil.Exists(st.Path("nodejs", "deps.json")) {
		t.Error("manifest kept its original name")
	}
}

func TestNode_PackagesOnly(t *testing.T) {
	t.Parallel()

	st, plan := planFor(t, Config{}, &Node{Runtime: "8.10", Packages: []string{"uuid"}})

	if got := plan.Script.String(); got != "pushd nodejs; npm install --save uuid; popd" {
		t.Errorf("script = %q", got)
	}
	if !testutil.Exists(st.Path("nodejs")) {
		t.Error("nodejs/ not created")
	}
}
