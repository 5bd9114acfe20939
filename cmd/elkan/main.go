// Package main provides the elkan command: import raw embedding files into
// segmented datasets and cluster them.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hupe1980/elkan"
	"github.com/hupe1980/elkan/internal/config"
	"github.com/hupe1980/elkan/internal/resource"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by all subcommands.
type app struct {
	cfg    *config.Config
	logger *elkan.Logger
	rc     *resource.Controller
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "elkan",
		Short: "Accelerated k-means for audio-frame embeddings",
		Long: `elkan clusters large collections of embedding vectors with Elkan's
accelerated k-means.

Datasets are stored as compressed segments in a blob store:
  file://<dir>                      local directory (memory-mapped reads)
  s3://<bucket>/<prefix>            Amazon S3 (default credential chain)
  minio://<endpoint>/<bucket>/<prefix>
  mem://<name>                      in-process, for testing`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("store", "", "Blob store URL (overrides config and ELKAN_STORE_URL)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "elkan v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(a.importCmd())
	rootCmd.AddCommand(a.clusterCmd())
	rootCmd.AddCommand(a.infoCmd())

	return rootCmd
}

// setup resolves configuration: defaults, file, environment, then flags.
func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.URL = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}

	if err := a.applyCommandFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := cfg.Log.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "json") {
		a.logger = elkan.NewLogger(slog.NewJSONHandler(a.stderr, opts))
	} else {
		a.logger = elkan.NewLogger(slog.NewTextHandler(a.stderr, opts))
	}

	a.rc = resource.NewController(resource.Config{
		MemoryLimitBytes:   cfg.Resources.MemoryLimitBytes,
		MaxWorkers:         int64(cfg.Resources.MaxWorkers),
		IOLimitBytesPerSec: cfg.Resources.IOLimitBytesPerSec,
	})
	a.cfg = cfg
	return nil
}

// applyCommandFlags copies explicitly set subcommand flags into cfg.
func (a *app) applyCommandFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()

	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Lookup(name) != nil && f.Changed(name) {
			err = apply()
		}
	}

	set("frames-per-segment", func() (e error) {
		cfg.Dataset.FramesPerSegment, e = f.GetInt("frames-per-segment")
		return
	})
	set("compression", func() (e error) {
		cfg.Dataset.Compression, e = f.GetString("compression")
		return
	})
	set("fraction", func() (e error) {
		cfg.Dataset.Fraction, e = f.GetFloat64("fraction")
		return
	})
	set("k", func() (e error) {
		cfg.Cluster.K, e = f.GetInt("k")
		return
	})
	set("seed", func() error {
		seed, e := f.GetInt64("seed")
		cfg.Cluster.Seed = &seed
		return e
	})
	set("max-iterations", func() (e error) {
		cfg.Cluster.MaxIterations, e = f.GetInt("max-iterations")
		return
	})
	set("policy", func() (e error) {
		cfg.Cluster.EmptyClusterPolicy, e = f.GetString("policy")
		return
	})
	set("exhaustive", func() (e error) {
		cfg.Cluster.Exhaustive, e = f.GetBool("exhaustive")
		return
	})
	return err
}
