// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/joeycumines/go-fiber/internal/scenario"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type (
	rootFlags struct {
		logLevel string
	}

	// report is the yaml output format of the run command
	report struct {
		Scenario  string            `yaml:"scenario,omitempty"`
		Trace     []string          `yaml:"trace"`
		Status    map[string]string `yaml:"status"`
		Ready     int               `yaml:"ready"`
		Scheduled int               `yaml:"scheduled"`
		Dead      int               `yaml:"dead"`
		Cancelled int               `yaml:"cancelled"`
		Delivered uint64            `yaml:"delivered"`
	}
)

var levelAliases = map[string]logiface.Level{
	`error`: logiface.LevelError,
	`warn`:  logiface.LevelWarning,
	`info`:  logiface.LevelInformational,
}

func newRootCmd() *cobra.Command {
	flags := new(rootFlags)

	root := &cobra.Command{
		Use:           `fibersim`,
		Short:         `Simulate cooperative fiber scheduling`,
		Long:          `fibersim runs YAML scenarios of fibers, interrupts and timers on a simulated single-core CPU.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.logLevel, `log-level`, `warning`, `Log level (disabled, err, warning, info, debug)`)

	root.AddCommand(
		newRunCmd(flags),
		newValidateCmd(),
	)

	return root
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		timeout time.Duration
		output  string
	)

	cmd := &cobra.Command{
		Use:   `run <scenario.yaml>`,
		Short: `Run a scenario, printing the trace`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), flags.logLevel)
			if err != nil {
				return err
			}

			sc, err := scenario.Load(args[0])
			if err != nil {
				return fmt.Errorf(`load scenario: %w`, err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			result, err := scenario.Run(ctx, sc, logger)
			if err != nil {
				return fmt.Errorf(`run scenario: %w`, err)
			}

			r := newReport(sc, result)
			switch output {
			case `text`:
				return writeText(cmd.OutOrStdout(), r)
			case `yaml`:
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(r); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf(`unknown output format: %q`, output)
			}
		},
	}

	cmd.Flags().DurationVar(&timeout, `timeout`, 10*time.Second, `Fail if the scenario does not complete in time (0 to disable)`)
	cmd.Flags().StringVarP(&output, `output`, `o`, `text`, `Output format (text, yaml)`)

	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `validate <scenario.yaml>...`,
		Short: `Check scenario files, without running them`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				sc, err := scenario.Load(path)
				if err != nil {
					return fmt.Errorf(`%s: %w`, path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d fibers, %d interrupts)\n", path, len(sc.Fibers), len(sc.Interrupts))
			}
			return nil
		},
	}
}

func newLogger(w io.Writer, level string) (*logiface.Logger[logiface.Event], error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(lvl),
	).Logger(), nil
}

func parseLevel(s string) (logiface.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if lvl, ok := levelAliases[s]; ok {
		return lvl, nil
	}
	for lvl := logiface.LevelDisabled; lvl <= logiface.LevelTrace; lvl++ {
		if lvl.String() == s {
			return lvl, nil
		}
	}
	return 0, fmt.Errorf(`unknown log level: %q`, s)
}

func newReport(sc *scenario.Scenario, result *scenario.Result) *report {
	r := &report{
		Scenario:  sc.Name,
		Trace:     result.Trace,
		Status:    make(map[string]string, len(result.Status)),
		Ready:     result.Stats.Ready,
		Scheduled: result.Stats.Scheduled,
		Dead:      result.Stats.Dead,
		Cancelled: result.Stats.Cancelled,
		Delivered: result.Delivered,
	}
	for name, status := range result.Status {
		r.Status[name] = status.String()
	}
	return r
}

func writeText(w io.Writer, r *report) error {
	var b strings.Builder
	if r.Scenario != `` {
		fmt.Fprintf(&b, "# %s\n", r.Scenario)
	}
	for _, line := range r.Trace {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("--\n")
	names := make([]string, 0, len(r.Status))
	for name := range r.Status {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\n", name, r.Status[name])
	}
	fmt.Fprintf(&b, "ready=%d scheduled=%d dead=%d cancelled=%d delivered=%d\n",
		r.Ready, r.Scheduled, r.Dead, r.Cancelled, r.Delivered)
	_, err := io.WriteString(w, b.String())
	return err
}
