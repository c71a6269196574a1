package main

import (
	"fmt"
	"log/slog"

	"github.com/siherrmann/askpdf"
	"github.com/siherrmann/askpdf/core/metrics"
	"github.com/siherrmann/askpdf/core/notify"
	"github.com/siherrmann/askpdf/core/pipeline"
	"github.com/siherrmann/askpdf/helper"
	"github.com/siherrmann/askpdf/model"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	questions []string
	model     string
	token     string
	channel   string
	workers   int
	threshold float64
	semantic  bool
	dryRun    bool
	debug     bool

	metricsTextfile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "askpdf [flags] <file.pdf>...",
		Short:        "Answer questions over PDF documents and post the results to Slack",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.questions, "question", "q", nil, "question to answer, can be repeated")
	cmd.Flags().StringVar(&opts.model, "model", "", "question answering model (overrides HUGGINGFACE_MODEL)")
	cmd.Flags().StringVar(&opts.token, "slack-token", "", "slack bot token (overrides SLACK_API_TOKEN)")
	cmd.Flags().StringVar(&opts.channel, "channel", "", "slack channel id (overrides SLACK_CHANNEL)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent model calls per question (overrides QA_WORKERS)")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "minimum confidence of an answer (overrides QA_CONFIDENCE_THRESHOLD)")
	cmd.Flags().BoolVar(&opts.semantic, "semantic", false, "chunk by sentence embeddings instead of fixed size")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log the payload instead of posting it")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write run metrics in prometheus text format to this file")
	_ = cmd.MarkFlagRequired("question")

	return cmd
}

func run(cmd *cobra.Command, opts *rootOptions, paths []string) error {
	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := helper.NewLogger(cmd.ErrOrStderr(), level)

	config, err := helper.NewAgentConfiguration()
	if err != nil {
		return err
	}
	config = config.WithOverrides(opts.model, opts.token, opts.channel)
	if cmd.Flags().Changed("workers") {
		config.Query.Workers = opts.workers
	}
	if cmd.Flags().Changed("threshold") {
		config.Query.ConfidenceThreshold = opts.threshold
	}

	docs, err := model.NewDocumentsFromFiles(paths...)
	if err != nil {
		return helper.NewError("read documents", err)
	}

	agent, err := askpdf.NewAgent(config, docs, logger)
	if err != nil {
		return err
	}

	if opts.semantic {
		chunker, closeFunc, err := pipeline.DefaultSemanticChunker(config.ChunkSize, 0.7)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeFunc(); err != nil {
				logger.Warn("Failed to close embedding session", slog.String("error", err.Error()))
			}
		}()
		agent.SetPipeline(pipeline.NewPipeline(pipeline.PDFExtractor(logger), chunker))
	} else {
		agent.SetPipeline(pipeline.NewPipeline(pipeline.PDFExtractor(logger), pipeline.TextChunker(config.ChunkSize)))
	}

	if opts.dryRun {
		agent.SetNotifier(notify.NewLogNotifier(logger))
	}

	var recorder *metrics.Recorder
	if opts.metricsTextfile != "" {
		recorder = metrics.NewRecorder()
		agent.SetMetrics(recorder)
	}

	report, err := agent.ProcessAndNotify(cmd.Context(), opts.questions, func(p model.Progress) {
		logger.Info(p.Message)
	})
	if writeErr := recorder.WriteToTextfile(opts.metricsTextfile); writeErr != nil {
		logger.Warn("Failed to write metrics", slog.String("path", opts.metricsTextfile), slog.String("error", writeErr.Error()))
	}
	if report != nil {
		payload, payloadErr := report.Payload()
		if payloadErr != nil {
			return payloadErr
		}
		fmt.Fprintln(cmd.OutOrStdout(), payload)

		for _, docErr := range report.DocumentErrors {
			logger.Warn("Document could not be processed", slog.String("title", docErr.Title), slog.String("error", docErr.Error))
		}
	}
	return err
}
