// main.go
// Copyright (c) 2026 Ichijo Hodaka
// Spiral Shim（スパイラル型シムコイルの電流・巻数の最適化）
// - current: 全コイル同形のスパイラルで、コイルごとの電流を Newton-CG で決める
// - turns:   全コイル直列の共通電流で、コイルごとの巻数を決める（tanh 緩和 → 整数化）
// - solenoid: 合成残留磁場に使うソレノイドの軸上磁場を表示する
// - 終了条件：最小化の収束 or 反復上限。Ctrl-C は段の切れ目で止める
//
// 表示は有効数字4桁（%.4g）

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	yml "gopkg.in/yaml.v2"

	"github.com/ichijohodaka/spiral-shim/report"
	"github.com/ichijohodaka/spiral-shim/shim"
)

// Version は ldflags で差し替える
var Version = "1"

var (
	configPath string
	logLevel   string
	overrides  []string
	limit      int
	table      string
	column     string
)

func newLogger(level string) (*slog.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})), nil
}

// setup は設定を読み、ロガーを既定にする。--log-level は設定ファイルより優先。
func setup(cmd *cobra.Command) (Config, *slog.Logger, error) {
	cfg, err := LoadConfig(configPath, overrides)
	if err != nil {
		return Config{}, nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return Config{}, nil, err
	}
	slog.SetDefault(log)
	return cfg, log, nil
}

// interruptible は Ctrl-C で cancel される context
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[Ctrl-C] interrupt received. stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runCurrent(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	b0f, err := cfg.Sampler()
	if err != nil {
		return err
	}
	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	res, err := shim.RunCurrent(ctx, cfg.CurrentParams(), b0f, log)
	if err != nil {
		return err
	}
	return emit(ctx, cmd.OutOrStdout(), cfg, res.Report, log)
}

func runTurns(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	p, err := cfg.TurnsParams()
	if err != nil {
		return err
	}
	b0f, err := cfg.Sampler()
	if err != nil {
		return err
	}
	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	res, err := shim.RunTurns(ctx, p, b0f, log)
	if err != nil {
		return err
	}
	return emit(ctx, cmd.OutOrStdout(), cfg, res.Report, log)
}

func runSolenoid(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	r, err := solenoidReport(cfg)
	if err != nil {
		return err
	}
	return emit(cmd.Context(), cmd.OutOrStdout(), cfg, r, log)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	if cfg.Output.History == "" {
		return fmt.Errorf("history is disabled (output.history is empty)")
	}
	h, err := report.OpenHistory(cfg.Output.History)
	if err != nil {
		return err
	}
	defer h.Close()

	ctx := cmd.Context()
	if (table == "") != (column == "") {
		return fmt.Errorf("--table and --column go together")
	}
	if table != "" {
		if len(args) == 0 {
			return fmt.Errorf("--table needs a run id")
		}
		vs, err := h.Series(ctx, args[0], table, column)
		if err != nil {
			return err
		}
		if len(vs) == 0 {
			return fmt.Errorf("run %s has no column %q in table %q", args[0], column, table)
		}
		report.PrintTable(cmd.OutOrStdout(), seriesTable(args[0], table, column, vs), cfg.Output.MaxPrint)
		return nil
	}
	if len(args) == 1 {
		qs, err := h.Quantities(ctx, args[0])
		if err != nil {
			return err
		}
		printQuantities(cmd.OutOrStdout(), args[0], qs)
		return nil
	}
	runs, err := h.Runs(ctx, limit)
	if err != nil {
		return err
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

// showTable は保存済みの CSV/TSV を読み戻して表示する
func showTable(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	t, err := report.LoadTableCSV(args[0], cfg.ReportOptions().Comma)
	if err != nil {
		return err
	}
	t.Title = filepath.Base(args[0])
	report.PrintTable(cmd.OutOrStdout(), t, cfg.Output.MaxPrint)
	return nil
}

func mkconf(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(configPath, overrides)
	if err != nil {
		return err
	}
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := yml.NewEncoder(f).Encode(cfg); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "config saved:", configPath)
	return nil
}

func printconf(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(configPath, overrides)
	if err != nil {
		return err
	}
	return yml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "spiralshim",
		Short: "Spiral shim-coil current and turns optimizer",
		Long: `spiralshim designs a stack of flat spiral shim coils that cancels
a residual axial induction B0(z).

Settings come from the defaults, config_local.go, the YAML file given by
--config (missing file is fine) and --set key=value, in that order.
The command mkconf writes the effective settings to the config file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", ConfigFileName, "configuration file path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringArrayVar(&overrides, "set", nil, "override a setting, e.g. --set method=trust-exact")

	history := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or print the design values of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
	history.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	history.Flags().StringVar(&table, "table", "", "print one column of this table of the run (with --column)")
	history.Flags().StringVar(&column, "column", "", "column name, e.g. \"B0 + Bz\"")

	root.AddCommand(
		&cobra.Command{
			Use:   "current",
			Short: "Optimize the coil currents (identical spirals, Newton-CG)",
			Args:  cobra.NoArgs,
			RunE:  runCurrent,
		},
		&cobra.Command{
			Use:   "turns",
			Short: "Optimize the number of turns per coil (common series current)",
			Args:  cobra.NoArgs,
			RunE:  runTurns,
		},
		&cobra.Command{
			Use:   "solenoid",
			Short: "Print the axial field of the configured solenoid",
			Args:  cobra.NoArgs,
			RunE:  runSolenoid,
		},
		history,
		&cobra.Command{
			Use:   "show <file.csv>",
			Short: "Print a saved table (CSV, or TSV when output.tsv is set)",
			Args:  cobra.ExactArgs(1),
			RunE:  showTable,
		},
		&cobra.Command{
			Use:   "mkconf",
			Short: "Write the effective configuration to the config file",
			Args:  cobra.NoArgs,
			RunE:  mkconf,
		},
		&cobra.Command{
			Use:   "conf",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE:  printconf,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "spiralshim version %v\n", Version)
			},
		},
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
