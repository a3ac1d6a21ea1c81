//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ja7ad/rectask/pkg/config"
	"github.com/ja7ad/rectask/pkg/consumption"
	"github.com/ja7ad/rectask/pkg/enumerate"
	"github.com/ja7ad/rectask/pkg/integrity"
	"github.com/ja7ad/rectask/pkg/logging"
	"github.com/ja7ad/rectask/pkg/orchestrator"
	"github.com/ja7ad/rectask/pkg/report"
	"github.com/ja7ad/rectask/pkg/system/cgroup"
	"github.com/ja7ad/rectask/pkg/system/host"
	"github.com/ja7ad/rectask/pkg/system/proc"
	"github.com/ja7ad/rectask/pkg/task"
	"github.com/ja7ad/rectask/pkg/telemetry"
)

var version = "dev"

type opts struct {
	configPath string
	envFile    string
	report     bool
	verbose    bool
	logFormat  string
	header     bool
	pretty     bool

	// outputs
	csvPath  string
	jsonPath string
	htmlPath string
}

func main() {
	code := 1
	root := newRootCommand(os.Args[1:], &code)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

// newRootCommand builds the CLI over args; the exit code of the run is stored
// in code.
func newRootCommand(args []string, code *int) *cobra.Command {
	var o opts

	root := &cobra.Command{
		Use:   "rectask <a> <b> [energyLimit]",
		Short: "Energy-bounded prime enumeration with task status reporting",
		Long: `rectask enumerates the primes in [a, b] while charging an estimated energy
cost, derived from the host's cores and RAM, against a budget in mWh. The run
stops early once the budget is exceeded.

In reporting mode the program first fetches its task record, verifies its own
SHA-256 digest against the recorded hash, and reports running and final
status to the task service.

Bounds must be >= 0. Put "--" before the positional arguments if any of them
starts with a dash.

Copyright (c) 2024 Javad Rajabzadeh Inc. All rights reserved.

Examples:
  rectask 1 100000 500
  RECTASK_TASK_ID=42 RECTASK_TOKEN=... rectask --report --config rectask.yaml 0 5000000
  rectask --csv out/samples.csv --json out/run.json 0 1000000`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := run(cmd.Context(), o, cmd.Flags().Changed("report"), args)
			*code = c
			return err
		},
	}

	root.Flags().StringVar(&o.configPath, "config", "", "YAML or TOML config file")
	root.Flags().StringVar(&o.envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	root.Flags().BoolVar(&o.report, "report", false, "report status to the task service")
	root.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	root.Flags().StringVar(&o.logFormat, "log-format", "", "log encoding: json or console (default from config)")
	root.Flags().BoolVar(&o.header, "header", true, "print the host header before the report")
	root.Flags().BoolVar(&o.pretty, "pretty", false, "format the summary as a table")

	root.Flags().StringVar(&o.csvPath, "csv", "", "write in-loop energy samples to CSV file")
	root.Flags().StringVar(&o.jsonPath, "json", "", "write the run result to JSON file")
	root.Flags().StringVar(&o.htmlPath, "html", "", "write the run result to HTML file")

	root.SetArgs(args)
	root.SetFlagErrorFunc(flagError(args))
	return root
}

// run returns the process exit code alongside any error worth printing.
func run(ctx context.Context, o opts, reportSet bool, args []string) (int, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return 1, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return 1, err
	}
	if reportSet {
		cfg.Report.Enabled = o.report
	}
	if o.verbose {
		cfg.Log.Verbose = true
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}

	inv, err := parseArgs(args, cfg.Report.Enabled)
	if err != nil {
		return 1, err
	}
	if inv.Limit > 0 {
		cfg.Energy.LimitMilliwattHours = inv.Limit
	}
	if err := cfg.Validate(); err != nil {
		return 1, err
	}

	log, err := logging.New(logging.Options{Verbose: cfg.Log.Verbose, Format: cfg.Log.Format})
	if err != nil {
		return 1, err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "rectask",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return 1, fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	info, err := host.Read()
	if err != nil {
		return 1, fmt.Errorf("host: %w", err)
	}
	if cfg.Power.RespectCgroup {
		info = constrain(info, log)
	}
	rate := consumption.NewModel(&cfg.Power.Profile).Rate(info)
	log.Debug("power rate",
		zap.Int("cores", rate.CoreCount),
		zap.Float64("ram_gb", rate.RAMGB),
		zap.Float64("rate_mwh_per_h", rate.RateMilliwattHoursPerHour))

	if o.header {
		printHeader(os.Stdout, info, rate, time.Now())
	}

	runner := enumerate.New(rate, enumerate.WithSampleHook(func(s enumerate.Sample) {
		log.Debug("energy sample",
			zap.Int64("i", s.Iteration),
			zap.Duration("elapsed", s.Elapsed),
			zap.Float64("energy_mwh", s.EnergyMilliwattHours),
			zap.Int("primes", s.PrimesSoFar))
	}))

	settings := orchestrator.Settings{
		Reporting: cfg.Report.Enabled,
		TaskID:    cfg.Report.TaskID,
		Budget:    enumerate.Budget{LimitMilliwattHours: cfg.Energy.LimitMilliwattHours},
	}

	var (
		tasks    orchestrator.Tasks
		verifier orchestrator.Verifier
	)
	if cfg.Report.Enabled {
		// Validate already rejected malformed durations.
		timeout, _ := cfg.Report.TimeoutDuration()
		delay, _ := cfg.Report.BaseDelayDuration()
		rc := report.New(report.Options{
			BaseURL:   cfg.Report.BaseURL,
			Token:     cfg.Report.Token,
			Timeout:   timeout,
			Attempts:  cfg.Report.Attempts,
			BaseDelay: delay,
			Logger:    log,
		})
		tasks = task.NewClient(rc, cfg.Report.TaskPath, cfg.Report.ExecutionPath)
		verifier = integrity.Guard{Path: cfg.Integrity.Path}
	}

	before, usageErr := proc.Self()
	out, err := orchestrator.New(settings, tasks, verifier, runner, log).Run(ctx, inv.Range)
	if err != nil {
		log.Error("run failed", zap.Stringer("state", out.State), zap.Error(err))
	}
	usage := selfUsage(before, usageErr, log)

	if out.Result != nil {
		if o.pretty {
			printTable(os.Stdout, out)
		} else {
			printReport(os.Stdout, *out.Result)
		}
		writeOutputs(o, out, info, rate, usage, log)
	}

	// already logged; main only needs the exit code
	return out.ExitCode(), nil
}

func constrain(info host.Info, log *zap.Logger) host.Info {
	lim, err := cgroup.ReadLimits()
	if err != nil {
		if !errors.Is(err, cgroup.ErrNoLimit) {
			log.Warn("cgroup limits unavailable", zap.Error(err))
		}
		return info
	}
	log.Debug("cgroup limits",
		zap.Float64("cores", lim.Cores),
		zap.String("memory", lim.Memory.Humanized()))
	return info.Constrain(lim.Cores, lim.Memory)
}

// selfUsage returns the CPU time spent since before, or nil when /proc
// could not be read.
func selfUsage(before proc.Usage, err error, log *zap.Logger) *proc.Usage {
	if err != nil {
		log.Debug("process usage unavailable", zap.Error(err))
		return nil
	}
	after, err := proc.Self()
	if err != nil {
		log.Debug("process usage unavailable", zap.Error(err))
		return nil
	}
	u := after.Sub(before)
	log.Info("process usage",
		zap.Duration("cpu", u.CPUTime()),
		zap.Duration("user", u.UserTime),
		zap.Duration("system", u.SystemTime),
		zap.String("rss", u.RSS.Humanized()))
	return &u
}

func writeOutputs(o opts, out orchestrator.Outcome, info host.Info, rate consumption.PowerRate, usage *proc.Usage, log *zap.Logger) {
	if o.jsonPath != "" {
		if err := writeJSON(o.jsonPath, out, rate, usage); err != nil {
			log.Error("write json", zap.String("path", o.jsonPath), zap.Error(err))
		}
	}
	if o.csvPath != "" {
		if err := writeCSV(o.csvPath, out.Result.Samples); err != nil {
			log.Error("write csv", zap.String("path", o.csvPath), zap.Error(err))
		}
	}
	if o.htmlPath != "" {
		if err := writeHTML(o.htmlPath, out, info, rate, usage); err != nil {
			log.Error("write html", zap.String("path", o.htmlPath), zap.Error(err))
		}
	}
}
