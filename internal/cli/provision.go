package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/picklr-io/ocrstack/internal/engine"
	"github.com/picklr-io/ocrstack/internal/eval"
	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/picklr-io/ocrstack/internal/logging"
	"github.com/picklr-io/ocrstack/internal/provider"
	"github.com/picklr-io/ocrstack/internal/publish"
	"github.com/picklr-io/ocrstack/internal/topology"
	awsprov "github.com/picklr-io/ocrstack/providers/aws"
	"github.com/picklr-io/ocrstack/providers/null"
	"github.com/spf13/cobra"
)

var (
	provisionEnvFile   string
	provisionEnvKey    string
	provisionSSM       string
	provisionCode      string
	provisionTopology  string
	provisionProps     map[string]string
	provisionNoPublish bool
	provisionDryRun    bool
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create or converge the deployment",
	Long: `Visits every descriptor in dependency order, reusing resources that already
exist and creating the rest, then writes the public endpoint URL into the
configured env file. Safe to re-run after a failure.`,
	Args: cobra.NoArgs,
	RunE: runProvision,
}

func init() {
	f := provisionCmd.Flags()
	f.StringVar(&provisionEnvFile, "env-file", "", "Env file that receives the endpoint URL (default $OCR_ENV_FILE or ../.env)")
	f.StringVar(&provisionEnvKey, "env-key", "", "Key updated in the env file (default $OCR_ENV_KEY)")
	f.StringVar(&provisionSSM, "ssm-parameter", "", "Also store the endpoint URL in this SSM parameter")
	f.StringVar(&provisionCode, "code", "", "Function package: a zip or a bootstrap binary")
	f.StringVar(&provisionTopology, "topology", "", "Pkl module overriding topology settings")
	f.StringToStringVarP(&provisionProps, "prop", "D", nil, "Properties exposed to the topology module (format: key=value)")
	f.BoolVar(&provisionNoPublish, "no-publish", false, "Do not write the endpoint URL anywhere")
	f.BoolVar(&provisionDryRun, "dry-run", false, "Walk the topology against a no-op provider; nothing is created or published")
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if provisionTopology != "" {
		overrides, err := eval.NewEvaluator(provisionProps).LoadOverrides(ctx, provisionTopology)
		if err != nil {
			return err
		}
		cfg.ApplyOverrides(overrides)
	}
	setIfChanged(&cfg.EnvFile, provisionEnvFile)
	setIfChanged(&cfg.EnvKey, provisionEnvKey)
	setIfChanged(&cfg.SSMParameter, provisionSSM)
	setIfChanged(&cfg.CodePath, provisionCode)

	if err := cfg.ValidateProvision(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	descs := topology.Build(cfg)
	if err := topology.Validate(descs); err != nil {
		return fmt.Errorf("invalid topology: %w", err)
	}

	if provisionDryRun {
		return dryRun(ctx, out, descs)
	}
	if _, err := os.Stat(cfg.CodePath); err != nil {
		return fmt.Errorf("function package: %w", err)
	}

	awsCfg, err := awsprov.LoadConfig(ctx, cfg.Region, cfg.Profile)
	if err != nil {
		return err
	}
	clients := awsprov.NewClients(awsCfg)
	registry := provider.NewRegistry()
	awsprov.Register(registry, clients.API())

	var publishers publish.Multi
	if !provisionNoPublish {
		if cfg.EnvFile != "" && cfg.EnvKey != "" {
			publishers = append(publishers, publish.NewEnvFile(cfg.EnvFile, cfg.EnvKey))
		}
		if cfg.SSMParameter != "" {
			publishers = append(publishers, publish.NewSSMParameter(clients.SSM, cfg.SSMParameter))
		}
	}

	fmt.Fprintf(out, "Provisioning %d descriptors in %s (settle waits up to %s)\n\n",
		len(engine.ExpandEach(descs)), cfg.Region, topology.SettleTotal(descs))

	p := &provisioner{out: out, engine: engine.NewEngine(registry)}
	if len(publishers) > 0 {
		p.publisher = publishers
	}
	_, err = p.run(ctx, descs)
	return err
}

// dryRun reconciles against the null provider without settle waits.
func dryRun(ctx context.Context, out io.Writer, descs []*ir.Descriptor) error {
	registry := provider.NewRegistry()
	null.Register(registry, null.New())

	fmt.Fprintf(out, "Dry run: %d descriptors, no cloud calls\n\n", len(engine.ExpandEach(descs)))
	p := &provisioner{out: out, engine: engine.NewEngine(registry).WithWaiter(engine.NoopWaiter{})}
	_, err := p.run(ctx, descs)
	return err
}

func setIfChanged(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// provisioner runs one reconciliation and publishes its endpoint.
type provisioner struct {
	out       io.Writer
	engine    *engine.Engine
	publisher publish.Publisher
}

func (p *provisioner) run(ctx context.Context, descs []*ir.Descriptor) (*ir.Run, error) {
	log := logging.WithComponent("provision")

	run, err := p.engine.ReconcileWithCallback(ctx, descs, progressPrinter(p.out))
	if err != nil {
		var resErr *engine.ResourceError
		if errors.As(err, &resErr) {
			fmt.Fprintf(p.out, "\n%sfailed at %s (%s): %v%s\n",
				colorize(colorRed), resErr.Name, resErr.Kind, resErr.Err, colorize(colorReset))
			fmt.Fprintln(p.out, "Resources created so far were kept; re-run to continue.")
			return run, fmt.Errorf("provisioning failed at %s: %w", resErr.Name, resErr.Err)
		}
		return run, fmt.Errorf("provisioning failed: %w", err)
	}

	url, err := topology.Endpoint(run)
	if err != nil {
		return run, err
	}

	counts := run.Counts()
	fmt.Fprintf(p.out, "\n%sProvisioning complete!%s %d created, %d updated, %d reused.\n",
		colorize(colorGreen), colorize(colorReset),
		counts[ir.StatusCreated], counts[ir.StatusUpdated], counts[ir.StatusReused])
	fmt.Fprintf(p.out, "Endpoint: %s\n", url)

	if p.publisher == nil {
		return run, nil
	}
	if err := p.publisher.Publish(ctx, url); err != nil {
		// A failed publish leaves the run successful.
		log.Warn().Err(err).Str("sink", p.publisher.String()).Msg("endpoint not published")
		fmt.Fprintf(p.out, "%swarning:%s endpoint not published: %v\n", colorize(colorYellow), colorize(colorReset), err)
		if publish.IsSoft(err) {
			fmt.Fprintln(p.out, "Add the key to the file, or pass --env-file/--env-key, and re-run.")
		}
		return run, nil
	}
	fmt.Fprintf(p.out, "Published endpoint to %s\n", p.publisher)
	return run, nil
}
