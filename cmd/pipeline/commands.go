package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyentantai21042004/triage-synth/internal/config"
	"github.com/nguyentantai21042004/triage-synth/internal/dataset"
	"github.com/nguyentantai21042004/triage-synth/internal/exporter"
	"github.com/nguyentantai21042004/triage-synth/internal/llm"
	"github.com/nguyentantai21042004/triage-synth/internal/logger"
	"github.com/nguyentantai21042004/triage-synth/internal/processor"
	"github.com/nguyentantai21042004/triage-synth/internal/watcher"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

type app struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "pipeline",
		Short: "Generate synthetic pediatric triage calls with an LLM",
		Long: `Generates a synthetic dataset of pediatric triage calls in three stages:

  keywords        sample example records and ask for new parent-style concerns
  summaries       turn every keyword into clinical case summaries (one file per record)
  transcriptions  add a NURSE/CALLER phone transcript to every record that lacks one

Each stage reads the previous stage's output and can be re-run safely.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newStageCmd(opts, "keywords", "Generate keyword phrases from example records",
			func(p processor.Processor) stageFunc { return p.GenerateKeywords }),
		newStageCmd(opts, "summaries", "Generate numbered summary records from the keyword list",
			func(p processor.Processor) stageFunc { return p.GenerateSummaries }),
		newTranscriptionsCmd(opts),
		newExportCmd(opts),
	)
	return root
}

type stageFunc func(ctx context.Context) (processor.Report, error)

func newStageCmd(opts *rootOptions, name, short string, pick func(processor.Processor) stageFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			proc, err := a.processor()
			if err != nil {
				return err
			}
			return a.runStage(cmd.Context(), name, pick(proc))
		},
	}
}

func newTranscriptionsCmd(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "transcriptions",
		Short: "Add call transcripts to summary records that lack one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			proc, err := a.processor()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := a.runStage(ctx, "transcriptions", proc.GenerateTranscriptions); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return a.watch(ctx, proc)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and transcribe new records as they appear")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Render transcribed records as Markdown and DOCX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			res, err := exporter.New(a.cfg.Paths.Suffix, a.log).ExportAll(cmd.Context(), a.cfg.Paths.Output, a.cfg.Paths.Exports)
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d records failed to export", res.Failed)
			}
			return nil
		},
	}
}

func loadApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if opts.verbose {
		level = "debug"
	}
	return &app{cfg: cfg, log: logger.New(level, cfg.Logging.Format)}, nil
}

func (a *app) processor() (processor.Processor, error) {
	client, err := llm.New(a.cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return processor.New(a.cfg, client, a.log), nil
}

// runStage runs one stage and records the run metadata. The metadata file
// is written for failed runs as well.
func (a *app) runStage(ctx context.Context, name string, fn stageFunc) error {
	log := a.log.With("stage", name)
	meta := config.Metadata{
		RunID:     config.NewRunID(),
		Stage:     name,
		StartedAt: time.Now().UTC(),
		Config:    a.cfg,
	}

	log.Info(ctx, "========================================")
	log.Info(ctx, "Starting %s (run %s, provider %s)", name, meta.RunID, a.cfg.LLM.Provider)
	log.Info(ctx, "========================================")

	report, err := fn(ctx)

	meta.FinishedAt = time.Now().UTC()
	if werr := config.WriteMetadata(a.cfg.Paths.Metadata, meta); werr != nil {
		log.Warn(ctx, "Failed to write metadata: %v", werr)
	}

	if err != nil {
		if errors.Is(err, dataset.ErrNoInput) {
			log.Error(ctx, "Nothing to do: %v", err)
		} else {
			log.Error(ctx, "Stage %s failed: %v", name, err)
		}
		return err
	}

	log.Info(ctx, "Stage %s finished in %s: %d succeeded, %d failed, %d skipped, %d records",
		name, meta.FinishedAt.Sub(meta.StartedAt).Round(time.Millisecond),
		report.Succeeded, report.Failed, report.Skipped, report.Records)
	return nil
}

func (a *app) watch(ctx context.Context, proc processor.Processor) error {
	w, err := watcher.New(watcher.Options{
		Dir:           a.cfg.Paths.Output,
		Suffix:        a.cfg.Paths.Suffix,
		MaxConcurrent: a.cfg.Transcriptions.MaxWorkers,
	}, proc.TranscribeFile, a.log)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Stop()

	a.log.Info(ctx, "Watching %s for new records. Press Ctrl+C to stop", a.cfg.Paths.Output)
	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info(ctx, "Watch mode stopped")
	return nil
}
