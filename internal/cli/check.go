package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/certcheck/certcheck/internal/awselb"
	"github.com/certcheck/certcheck/internal/bosh"
	"github.com/certcheck/certcheck/internal/config"
	"github.com/certcheck/certcheck/internal/metrics"
	"github.com/certcheck/certcheck/internal/notify"
	"github.com/certcheck/certcheck/internal/report"
	"github.com/certcheck/certcheck/internal/scan"
	"github.com/certcheck/certcheck/internal/telemetry"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Scan certificates and alert on upcoming expiry",
	Long: `Scan every certificate embedded in BOSH deployment manifests and
every certificate attached to AWS classic load balancer listeners,
classify them against the warn/error day thresholds, and deliver one
batched Slack message for anything expiring.

The exit code reflects operational health, not findings:
  0  scan completed and alerts (if any) were delivered
  1  a source was unreachable, a certificate field was malformed,
     or Slack delivery failed`,
	Example: `  # Scan both sources, settings from the environment
  certcheck check

  # Only the BOSH director, with explicit thresholds
  certcheck check --no-elb-check --days-warn 45 --days-error 14

  # Machine-readable findings on stdout
  certcheck check --output json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().String("config", "", "Path to config file")
	checkCmd.Flags().String("bosh-environment", "", "BOSH director hostname")
	checkCmd.Flags().String("bosh-username", "", "BOSH director username")
	checkCmd.Flags().String("bosh-password", "", "BOSH director password")
	checkCmd.Flags().String("bosh-ca-cert", "", "Path to the director CA certificate bundle")
	checkCmd.Flags().String("slack-webhook", "", "Slack incoming webhook URL")
	checkCmd.Flags().String("slack-channel", "", "Slack channel to post alerts to")
	checkCmd.Flags().String("slack-username", "", "Username the alert is posted as")
	checkCmd.Flags().String("slack-icon-emoji", "", "Icon emoji for the alert")
	checkCmd.Flags().Int("days-warn", 30, "Days remaining at or below which a certificate warns")
	checkCmd.Flags().Int("days-error", 7, "Days remaining at or below which a certificate is critical")
	checkCmd.Flags().Bool("no-bosh-check", false, "Skip the BOSH manifest scan")
	checkCmd.Flags().Bool("no-elb-check", false, "Skip the AWS ELB listener scan")
	checkCmd.Flags().String("pushgateway-url", "", "Prometheus pushgateway base URL (empty = no push)")
	checkCmd.Flags().StringP("output", "o", "", "Findings output format: json, table (default: none)")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg := config.Defaults()
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	ctx := context.Background()

	sources, err := buildSources(ctx, cfg)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		slog.Warn("all certificate sources disabled, nothing to scan")
	}

	// Initialize tracing
	otelEndpoint, _ := cmd.Flags().GetString("otel-endpoint") //nolint:errcheck // flag registered above
	tracer, tracerShutdown, tracerErr := telemetry.Setup(ctx, otelEndpoint, version)
	if tracerErr != nil {
		slog.Warn("initializing tracer", "err", tracerErr)
	} else {
		defer tracerShutdown(ctx) //nolint:errcheck // best-effort flush
	}

	var scanOpts []scan.Option
	if tracer != nil {
		scanOpts = append(scanOpts, scan.WithTracer(tracer))
		var span trace.Span
		ctx, span = tracer.Start(ctx, "check")
		defer span.End()
	}

	slog.Info("scanning certificate sources", "count", len(sources))
	scanner := scan.NewScanner(sources, cfg.DaysWarn, cfg.DaysError, scanOpts...)
	start := time.Now()
	result, err := scanner.Run(ctx)
	if err != nil {
		return err
	}
	alerts := result.Alerts()
	slog.Info("scan complete", "certificates", len(result.Findings), "alerts", len(alerts))

	outputFlag, _ := cmd.Flags().GetString("output") //nolint:errcheck // flag registered above
	switch outputFlag {
	case "":
	case "json":
		if err := report.WriteJSON(cmd.OutOrStdout(), result); err != nil {
			return fmt.Errorf("writing JSON output: %w", err)
		}
	case "table":
		if err := report.WriteTable(cmd.OutOrStdout(), result); err != nil {
			return fmt.Errorf("writing table output: %w", err)
		}
	default:
		return fmt.Errorf("invalid --output value %q: must be json or table", outputFlag)
	}

	if cfg.Pushgateway != "" {
		if pushErr := metrics.NewPusher(cfg.Pushgateway).Push(ctx, result, time.Since(start)); pushErr != nil {
			slog.Warn("pushing metrics", "gateway", cfg.Pushgateway, "err", pushErr)
		}
	}

	return notify.New(cfg.Slack, cmd.OutOrStdout()).Send(ctx, alerts)
}

// applyFlagOverrides layers explicitly set flags over the config.
// Flags win over both the file and the environment.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("bosh-environment") {
		cfg.Bosh.Environment, _ = flags.GetString("bosh-environment") //nolint:errcheck // flag registered above
	}
	if flags.Changed("bosh-username") {
		cfg.Bosh.Username, _ = flags.GetString("bosh-username") //nolint:errcheck // flag registered above
	}
	if flags.Changed("bosh-password") {
		cfg.Bosh.Password, _ = flags.GetString("bosh-password") //nolint:errcheck // flag registered above
	}
	if flags.Changed("bosh-ca-cert") {
		cfg.Bosh.CACert, _ = flags.GetString("bosh-ca-cert") //nolint:errcheck // flag registered above
	}
	if flags.Changed("slack-webhook") {
		cfg.Slack.WebhookURL, _ = flags.GetString("slack-webhook") //nolint:errcheck // flag registered above
	}
	if flags.Changed("slack-channel") {
		cfg.Slack.Channel, _ = flags.GetString("slack-channel") //nolint:errcheck // flag registered above
	}
	if flags.Changed("slack-username") {
		cfg.Slack.Username, _ = flags.GetString("slack-username") //nolint:errcheck // flag registered above
	}
	if flags.Changed("slack-icon-emoji") {
		cfg.Slack.IconEmoji, _ = flags.GetString("slack-icon-emoji") //nolint:errcheck // flag registered above
	}
	if flags.Changed("days-warn") {
		cfg.DaysWarn, _ = flags.GetInt("days-warn") //nolint:errcheck // flag registered above
	}
	if flags.Changed("days-error") {
		cfg.DaysError, _ = flags.GetInt("days-error") //nolint:errcheck // flag registered above
	}
	if flags.Changed("no-bosh-check") {
		cfg.NoBoshCheck, _ = flags.GetBool("no-bosh-check") //nolint:errcheck // flag registered above
	}
	if flags.Changed("no-elb-check") {
		cfg.NoELBCheck, _ = flags.GetBool("no-elb-check") //nolint:errcheck // flag registered above
	}
	if flags.Changed("pushgateway-url") {
		cfg.Pushgateway, _ = flags.GetString("pushgateway-url") //nolint:errcheck // flag registered above
	}
}

// buildSources assembles the enabled certificate sources in scan order.
func buildSources(ctx context.Context, cfg *config.Config) ([]scan.Source, error) {
	var sources []scan.Source

	if !cfg.NoBoshCheck {
		opts := []func(*bosh.Director){bosh.WithPort(cfg.Bosh.Port)}
		if cfg.Bosh.CACert != "" {
			opts = append(opts, bosh.WithCACert(cfg.Bosh.CACert))
		}
		director, err := bosh.NewDirector(cfg.Bosh.Environment, cfg.Bosh.Username, cfg.Bosh.Password, opts...)
		if err != nil {
			return nil, fmt.Errorf("building director client: %w", err)
		}
		sources = append(sources, bosh.NewSource(director))
	}

	if !cfg.NoELBCheck {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		sources = append(sources, awselb.NewSource(awsCfg))
	}

	return sources, nil
}
