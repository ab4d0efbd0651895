// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ContainerEngineNotFoundId Id = iota + 1
	ImageBuildFailedId
	ContainerRunFailedId
	NoBuildEntryPointId
	NoBuildArtifactId
	StagingFailedId
	PermissionDeniedId
	ConfigLoadFailedId
	InvalidRuntimeId
	NothingToBundleId
	EmptyArchiveId
	PublishFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	docLinks []HttpLink
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown using a glamour style
// ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# No container engine found

layermake runs every install step inside a throwaway container, so it needs
either Docker or Podman on your PATH with a reachable daemon.

## Things you can try
- Check that the daemon is running:
~~~
$ docker version
~~~
- Pick the other engine explicitly:
~~~
$ layermake --engine podman python -r 3.9 requests
~~~`,
		extLinks: []HttpLink{"https://docs.docker.com/get-docker/", "https://podman.io/docs/installation"},
	}

	imageBuildFailedIssue = &Issue{
		id: ImageBuildFailedId,
		mdMsg: `
# The build image could not be created

The binary bundler builds an image from a generated Dockerfile before running
your build script. The build failed before your script was reached.

## Things you can try
- Re-run with ` + "`--verbose`" + ` to see the ` + "`docker build`" + ` output.
- Check that every ` + "`-p`" + ` package exists in the base image's yum repositories.
- Point ` + "`--base-image`" + ` at an image that ships ` + "`yum`" + `.`,
	}

	containerRunFailedIssue = &Issue{
		id: ContainerRunFailedId,
		mdMsg: `
# The install step failed inside the container

The command run inside the build container exited with a non-zero status.
Nothing was retried; the staging directory has been cleaned up.

## Things you can try
- Re-run with ` + "`--verbose`" + ` to stream the container output.
- Use ` + "`--no-zip`" + ` to keep the staged files and inspect them.`,
	}

	noBuildEntryPointIssue = &Issue{
		id: NoBuildEntryPointId,
		mdMsg: `
# No build entry point found

A binary layer directory must contain one of these files at its top level:

- ` + "`make`" + ` (runs ` + "`make install`" + `)
- ` + "`build`, `install`, `layer`, `build-layer`" + ` or their ` + "`.sh`" + ` forms

## Things you can try
- Add a ` + "`build.sh`" + ` that installs into ` + "`$OUTPUT_BIN`" + ` and ` + "`$OUTPUT_LIB`" + `.
- Pass the command explicitly with ` + "`-c`" + `.`,
	}

	noBuildArtifactIssue = &Issue{
		id: NoBuildArtifactId,
		mdMsg: `
# Nothing to build

The binary bundler needs either a build artifact (a directory or a script) or
an explicit command passed with ` + "`-c`" + `.`,
	}

	stagingFailedIssue = &Issue{
		id: StagingFailedId,
		mdMsg: `
# Files could not be staged

layermake copies your sources into a local staging directory that is mounted
into the build container. A copy, move or mkdir failed.

## Things you can try
- Check that the source path exists and is readable.
- Choose another staging directory with ` + "`-o`" + `.`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied while cleaning up

Files written by the container are often owned by root. layermake retried the
removal once after making the path writable, and that failed too.

## Things you can try
- Remove the staging directory manually:
~~~
$ sudo rm -rf ./layer
~~~
- Run Podman rootless so files keep your user id.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

## Things you can try
- Print the effective configuration:
~~~
$ layermake config show
~~~
- Recreate the default file:
~~~
$ layermake config init
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	invalidRuntimeIssue = &Issue{
		id: InvalidRuntimeId,
		mdMsg: `
# No runtime selected

Pass the runtime on the command line to skip the prompt:
~~~
$ layermake python -r 3.9 requests
$ layermake nodejs -r 16.x lodash
~~~`,
	}

	nothingToBundleIssue = &Issue{
		id: NothingToBundleId,
		mdMsg: `
# Nothing to bundle

Give layermake at least one package name, a manifest with ` + "`-m`" + `, or a
source directory with ` + "`--dir`" + `.`,
	}

	emptyArchiveIssue = &Issue{
		id: EmptyArchiveId,
		mdMsg: `
# The layer archive is missing or empty

The container finished but no usable ` + "`layer.zip`" + ` was produced, so there
is nothing to publish.

## Things you can try
- Re-run with ` + "`--verbose`" + ` and check the zip step output.
- Make sure the install step writes files below the working directory.`,
	}

	publishFailedIssue = &Issue{
		id: PublishFailedId,
		mdMsg: `
# The layer could not be published

## Things you can try
- Check your credentials and region:
~~~
$ aws sts get-caller-identity --profile <profile>
~~~
- Publish later with the AWS CLI and keep the archive with ` + "`--no-publish`" + `.`,
		extLinks: []HttpLink{"https://docs.aws.amazon.com/lambda/latest/dg/chapter-layers.html"},
	}

	issues = map[Id]*Issue{
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		imageBuildFailedIssue.Id():        imageBuildFailedIssue,
		containerRunFailedIssue.Id():      containerRunFailedIssue,
		noBuildEntryPointIssue.Id():       noBuildEntryPointIssue,
		noBuildArtifactIssue.Id():         noBuildArtifactIssue,
		stagingFailedIssue.Id():           stagingFailedIssue,
		permissionDeniedIssue.Id():        permissionDeniedIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		invalidRuntimeIssue.Id():          invalidRuntimeIssue,
		nothingToBundleIssue.Id():         nothingToBundleIssue,
		emptyArchiveIssue.Id():            emptyArchiveIssue,
		publishFailedIssue.Id():           publishFailedIssue,
	}
)

// Values returns every catalog issue ordered by id.
func Values() []*Issue {
	values := maps.Values(issues)
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return values
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
