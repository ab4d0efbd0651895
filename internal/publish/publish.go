// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"

	"github.com/layermake/layermake/internal/bundler"
	"github.com/layermake/layermake/internal/issue"
	"github.com/layermake/layermake/internal/logging"
)

// DefaultArchitecture is used when no architecture is given.
const DefaultArchitecture = string(types.ArchitectureX8664)

var supportedArchitectures = []types.Architecture{types.ArchitectureX8664, types.ArchitectureArm64}

var (
	// ErrEmptyArchive is returned when layer.zip is missing or empty.
	ErrEmptyArchive = errors.New("layer archive is missing or empty")

	// ErrNoLayerName is returned when publishing without a layer name.
	ErrNoLayerName = errors.New("layer name is required to publish")

	// ErrInvalidArchitecture is returned for an architecture Lambda does not support.
	ErrInvalidArchitecture = errors.New("invalid architecture")

	// ErrLicenseFile is returned when the license file cannot be read.
	ErrLicenseFile = errors.New("unreadable license file")
)

type (
	// LambdaAPI is the part of the Lambda client the publisher uses.
	LambdaAPI interface {
		PublishLayerVersion(ctx context.Context, params *lambda.PublishLayerVersionInput, optFns ...func(*lambda.Options)) (*lambda.PublishLayerVersionOutput, error)
	}

	// ClientFactory creates the Lambda client on first use.
	ClientFactory func(ctx context.Context) (LambdaAPI, error)

	// Options are the layer flags.
	Options struct {
		Name          string
		Description   string
		LicenseText   string
		LicenseFile   string
		Architectures []string
		// Runtimes are the compatible runtimes. Empty sends none.
		Runtimes []string
		Profile  string
		Region   string
		// Skip disables publishing (--no-publish).
		Skip bool
	}

	// Result describes a published layer version.
	Result struct {
		Version int64
		ARN     string
		// Skipped is true when nothing was published.
		Skipped bool
	}

	// Publisher publishes bundled layers.
	Publisher struct {
		opts      Options
		log       logging.Logger
		newClient ClientFactory
		client    LambdaAPI
	}
)

// New creates a Publisher that loads the shared AWS configuration, honoring
// Options.Profile and Options.Region, the first time it publishes.
func New(opts Options, log logging.Logger) *Publisher {
	return &Publisher{opts: opts, log: log, newClient: defaultClientFactory(opts)}
}

// NewWithClient creates a Publisher around an existing client.
func NewWithClient(opts Options, client LambdaAPI, log logging.Logger) *Publisher {
	return &Publisher{opts: opts, log: log, client: client}
}

func defaultClientFactory(opts Options) ClientFactory {
	return func(ctx context.Context) (LambdaAPI, error) {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if opts.Profile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
		}
		if opts.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS configuration: %w", err)
		}
		return lambda.NewFromConfig(cfg), nil
	}
}

// Validate checks the options before any work is done, so a bad flag fails
// before a container runs.
func (o Options) Validate() error {
	if o.Skip {
		return nil
	}
	if o.Name == "" {
		return ErrNoLayerName
	}
	for _, a := range o.Architectures {
		if !slices.Contains(supportedArchitectures, types.Architecture(a)) {
			return fmt.Errorf("%w %q (valid: x86_64, arm64)", ErrInvalidArchitecture, a)
		}
	}
	if o.LicenseText == "" && o.LicenseFile != "" {
		f, err := os.Open(o.LicenseFile)
		if err != nil {
			return fmt.Errorf("%w %s: %w", ErrLicenseFile, o.LicenseFile, err)
		}
		_ = f.Close()
	}
	return nil
}

// Publish uploads out as a new layer version. layerType names the layer in
// the default description, e.g. "python3.8" or "binary".
func (p *Publisher) Publish(ctx context.Context, out *bundler.Output, layerType string) (*Result, error) {
	if p.opts.Skip {
		p.log.Info(`layer publishing skipped with "--no-publish"`)
		return &Result{Skipped: true}, nil
	}
	if !out.Zipped {
		p.log.Warn("layer publishing skipped: only zipped layers can be published", "path", out.Path)
		return &Result{Skipped: true}, nil
	}
	if err := p.opts.Validate(); err != nil {
		return nil, err
	}

	zip, err := os.ReadFile(out.Path)
	if err != nil || len(zip) == 0 {
		cause := ErrEmptyArchive
		if err != nil {
			cause = fmt.Errorf("%w: %w", ErrEmptyArchive, err)
		}
		return nil, issue.NewErrorContext().
			WithOperation("read layer archive").
			WithResource(out.Path).
			WithSuggestion("Check that the container's zip step produced output").
			WithIssue(issue.EmptyArchiveId).
			Wrap(cause).
			BuildError()
	}

	license, err := p.licenseInfo()
	if err != nil {
		return nil, err
	}

	input := &lambda.PublishLayerVersionInput{
		LayerName:               aws.String(p.opts.Name),
		Description:             aws.String(p.description(layerType)),
		Content:                 &types.LayerVersionContentInput{ZipFile: zip},
		CompatibleArchitectures: p.architectures(),
	}
	if license != "" {
		input.LicenseInfo = aws.String(license)
	}
	for _, r := range p.opts.Runtimes {
		input.CompatibleRuntimes = append(input.CompatibleRuntimes, types.Runtime(r))
	}

	status := p.log.Status("publishing layer")
	defer status.Done()

	if p.client == nil {
		if p.client, err = p.newClient(ctx); err != nil {
			return nil, publishError(p.opts.Name, err)
		}
	}

	resp, err := p.client.PublishLayerVersion(ctx, input)
	if err != nil {
		return nil, publishError(p.opts.Name, err)
	}

	res := &Result{Version: resp.Version, ARN: aws.ToString(resp.LayerVersionArn)}
	p.log.Success("version: " + strconv.FormatInt(res.Version, 10))
	if res.ARN != "" {
		p.log.Info("layer version arn: " + res.ARN)
	}
	return res, nil
}

func (p *Publisher) description(layerType string) string {
	if p.opts.Description != "" {
		return p.opts.Description
	}
	return fmt.Sprintf("my %s layer built with layermake", layerType)
}

func (p *Publisher) architectures() []types.Architecture {
	if len(p.opts.Architectures) == 0 {
		return []types.Architecture{types.ArchitectureX8664}
	}
	archs := make([]types.Architecture, 0, len(p.opts.Architectures))
	for _, a := range p.opts.Architectures {
		archs = append(archs, types.Architecture(a))
	}
	return archs
}

// licenseInfo returns the license text, or the contents of the license file.
func (p *Publisher) licenseInfo() (string, error) {
	if p.opts.LicenseText != "" {
		return p.opts.LicenseText, nil
	}
	if p.opts.LicenseFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(p.opts.LicenseFile)
	if err != nil {
		return "", issue.WrapWithContext(err, "read license file", p.opts.LicenseFile)
	}
	return string(data), nil
}

func publishError(name string, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("publish layer").
		WithResource(name).
		WithIssue(issue.PublishFailedId)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		ctx = ctx.WithSuggestion(fmt.Sprintf("AWS returned %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage()))
	}
	return ctx.
		WithSuggestion("Check your AWS credentials, --profile and --region").
		Wrap(err).
		BuildError()
}
