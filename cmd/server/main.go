// Command server runs the QuakeScope alert service and its operator tooling.
//
// Usage:
//
//	quakescope                      # same as serve
//	quakescope serve
//	quakescope tokens list
//	quakescope events publish --lat 35.68 --lon 139.76 --mag 6.2 --id eq-2024-001
//	quakescope notify test-earthquake --lat 35.68 --lon 139.76 --dry-run
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quakescope/internal/app"
	"quakescope/internal/config"
	"quakescope/internal/model"
	"quakescope/internal/queue"
	transporthttp "quakescope/internal/transport/http"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	root := &cobra.Command{
		Use:           "quakescope",
		Short:         "Earthquake push-alert service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	root.AddCommand(serveCmd())
	root.AddCommand(tokensCmd())
	root.AddCommand(eventsCmd())
	root.AddCommand(notifyCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// serve command
// --------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the event intake workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return transporthttp.Run(ctx, cfg, logger)
}

// --------------------------------------------------------------------------
// tokens command
// --------------------------------------------------------------------------

func tokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect registered device tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every registered token in registration order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(func(ctx context.Context, a *app.App) error {
				tokens, err := a.Alerts.ListTokens(ctx)
				if err != nil {
					return err
				}
				for _, t := range tokens {
					fmt.Fprintln(cmd.OutOrStdout(), t)
				}
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// events command
// --------------------------------------------------------------------------

// eventFlags are shared by the commands that build a candidate event.
type eventFlags struct {
	id        string
	latitude  float64
	longitude float64
	magnitude float64
	depth     float64
	source    string
	title     string
	body      string
	dryRun    bool
}

func (f *eventFlags) register(cmd *cobra.Command, defaultSource string) {
	cmd.Flags().StringVar(&f.id, "id", "", "Earthquake id used for delivery idempotency")
	cmd.Flags().Float64Var(&f.latitude, "lat", 0, "Epicenter latitude")
	cmd.Flags().Float64Var(&f.longitude, "lon", 0, "Epicenter longitude")
	cmd.Flags().Float64Var(&f.magnitude, "mag", model.DefaultSimulatedMagnitude, "Magnitude")
	cmd.Flags().Float64Var(&f.depth, "depth", 0, "Depth in km")
	cmd.Flags().StringVar(&f.source, "source", defaultSource, "Event source")
	cmd.Flags().StringVar(&f.title, "title", "", "Notification title override")
	cmd.Flags().StringVar(&f.body, "body", "", "Notification body override")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Validate with FCM without delivering")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
}

func (f *eventFlags) event(cmd *cobra.Command) model.CandidateEvent {
	event := model.CandidateEvent{
		ID:        strings.TrimSpace(f.id),
		Latitude:  f.latitude,
		Longitude: f.longitude,
		Magnitude: f.magnitude,
		Source:    f.source,
	}
	if cmd.Flags().Changed("depth") {
		depth := f.depth
		event.Depth = &depth
	}
	return event
}

func (f *eventFlags) message() model.AlertMessage {
	return model.AlertMessage{Title: f.title, Body: f.body, DryRun: f.dryRun}
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Feed candidate events into the alert stream",
	}

	var flags eventFlags
	publish := &cobra.Command{
		Use:   "publish",
		Short: "Publish a candidate earthquake for the intake workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			event := flags.event(cmd)
			if event.ID == "" {
				return fmt.Errorf("--id is required for stream events")
			}
			return runWithApp(func(ctx context.Context, a *app.App) error {
				client, err := a.Redis(ctx)
				if err != nil {
					return err
				}

				alert := queue.NewEarthquakeEvent(event)
				msg := flags.message()
				alert.Title, alert.Body, alert.DryRun = msg.Title, msg.Body, msg.DryRun

				msgID, err := queue.NewPublisher(client.Client, logger).PublishEarthquake(ctx, alert)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msgID)
				return nil
			})
		},
	}
	flags.register(publish, model.SourceDetected)
	cmd.AddCommand(publish)
	return cmd
}

// --------------------------------------------------------------------------
// notify command
// --------------------------------------------------------------------------

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send alerts without going through the HTTP API",
	}

	var flags eventFlags
	testEarthquake := &cobra.Command{
		Use:   "test-earthquake",
		Short: "Run a simulated earthquake through matching and dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			event := flags.event(cmd)
			if event.ID == "" {
				event.ID = fmt.Sprintf("sim-%d", time.Now().Unix())
			}
			if event.Magnitude == 0 {
				event.Magnitude = model.DefaultSimulatedMagnitude
			}
			return runWithApp(func(ctx context.Context, a *app.App) error {
				outcome, err := a.Alerts.ProcessEvent(ctx, event, flags.message())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(outcome)
			})
		},
	}
	flags.register(testEarthquake, model.SourceSimulated)
	cmd.AddCommand(testEarthquake)
	return cmd
}

// --------------------------------------------------------------------------
// helpers
// --------------------------------------------------------------------------

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger = newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, nil
}

func runWithApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
