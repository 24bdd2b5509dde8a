package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecbench"
	"github.com/hupe1980/vecbench/index/families"
	"github.com/hupe1980/vecbench/sweep"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "vecbench",
		Short:        "Parameter-sweep benchmarks for ANN vector indexes",
		SilenceUsage: true, // don't print usage on benchmark failures
		Long: `vecbench builds every index family over a grid of build parameters,
searches each build over a grid of search parameters, and reports
recall against latency for fp32, fp16 and bf16 element precisions.`,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./vecbench.yaml)")
	addConfigFlags(root.PersistentFlags())

	load := func(cmd *cobra.Command) (fileConfig, error) {
		return loadConfig(viper.New(), configPath, cmd.Flags())
	}
	root.AddCommand(newRunCmd(load), newFamiliesCmd(), newConfigCmd(load))
	return root
}

type loader func(cmd *cobra.Command) (fileConfig, error)

func newRunCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the configured sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runSweep(ctx, cfg, cmd)
		},
	}
}

func runSweep(ctx context.Context, cfg fileConfig, cmd *cobra.Command) (err error) {
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg.Store, cfg.WorkDir)
	if err != nil {
		return err
	}
	opts, err := benchOptions(cfg, logger, store)
	if err != nil {
		return err
	}
	b, err := vecbench.New(opts...)
	if err != nil {
		return err
	}
	plans, err := buildPlans(cfg)
	if err != nil {
		return err
	}
	ds, err := loadDataset(ctx, b, cfg.Dataset)
	if err != nil {
		return err
	}

	sink, closeSinks, err := openSinks(cfg.Report, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeSinks(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return b.Run(ctx, ds, sink, plans...)
}

func newFamiliesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List the registered index families and their default sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			defaults := make(map[string]sweep.Plan)
			for _, p := range sweep.DefaultPlans() {
				defaults[p.Family] = p
			}
			for _, name := range families.Default().Names() {
				p, ok := defaults[name]
				if !ok {
					fmt.Fprintln(w, name)
					continue
				}
				fmt.Fprintf(w, "%-10s builds=%-3d searches=%-3d %s\n",
					name, p.Build.Size(), p.Search.Size(), describe(p))
			}
			return nil
		},
	}
}

func describe(p sweep.Plan) string {
	var parts []string
	if len(p.Fixed) > 0 {
		parts = append(parts, "fixed("+p.Fixed.String()+")")
	}
	for _, a := range p.Build {
		parts = append(parts, fmt.Sprintf("build.%s=%v", a.Name, a.Values))
	}
	for _, a := range p.Search {
		parts = append(parts, fmt.Sprintf("search.%s=%v", a.Name, a.Values))
	}
	if p.RoundTrip {
		parts = append(parts, "round-trip")
	}
	return strings.Join(parts, " ")
}

func newConfigCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
