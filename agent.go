package askpdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/askpdf/core/metrics"
	"github.com/siherrmann/askpdf/core/notify"
	"github.com/siherrmann/askpdf/core/pipeline"
	"github.com/siherrmann/askpdf/core/query"
	"github.com/siherrmann/askpdf/helper"
	"github.com/siherrmann/askpdf/model"
)

// ErrAlreadyRun is returned when ProcessAndNotify is called on an agent that already started a run.
var ErrAlreadyRun = errors.New("agent has already run")

// ReportArchive stores finished reports.
type ReportArchive interface {
	InsertReport(report *model.Report) error
}

// Agent answers questions over a set of documents and posts the results to a channel.
type Agent struct {
	config    model.AgentConfig
	documents []*model.Document

	pipeline  *pipeline.Pipeline
	predictor query.Predictor
	notifier  notify.Notifier
	archive   ReportArchive     // Optional
	metrics   *metrics.Recorder // Optional
	// Logging
	log *slog.Logger

	mu    sync.Mutex
	state model.Stage
}

// NewAgent creates an agent with the default pipeline, the inference api predictor
// and a retrying slack notifier, all logging to logger.
// A nil logger logs to stderr so stdout stays free for the payload.
func NewAgent(config model.AgentConfig, documents []*model.Document, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = helper.NewLogger(os.Stderr, slog.LevelInfo)
	}

	predictor, err := query.NewInferenceClient(config)
	if err != nil {
		return nil, helper.NewError("create inference client", err)
	}

	slackNotifier, err := notify.NewSlackNotifier(config.SlackToken, config.SlackAPIURL, logger)
	if err != nil {
		return nil, helper.NewError("create slack notifier", err)
	}

	return &Agent{
		config:    config,
		documents: documents,
		pipeline:  pipeline.DefaultPipeline(config.ChunkSize, logger),
		predictor: predictor,
		notifier:  notify.NewRetryNotifier(slackNotifier, config.NotifyRetries, logger),
		log:       logger,
		state:     model.StageIdle,
	}, nil
}

// SetPipeline sets the extraction and chunking pipeline
func (a *Agent) SetPipeline(pipeline *pipeline.Pipeline) {
	a.pipeline = pipeline
}

// SetPredictor sets the question answering model
func (a *Agent) SetPredictor(predictor query.Predictor) {
	a.predictor = predictor
}

// SetNotifier sets where the report payload is posted
func (a *Agent) SetNotifier(notifier notify.Notifier) {
	a.notifier = notifier
}

// SetArchive enables archiving of finished reports
func (a *Agent) SetArchive(archive ReportArchive) {
	a.archive = archive
}

// SetMetrics enables recording of run metrics
func (a *Agent) SetMetrics(recorder *metrics.Recorder) {
	a.metrics = recorder
}

// Config returns the configuration of the agent.
func (a *Agent) Config() model.AgentConfig {
	return a.config
}

// State returns the current stage of the agent.
func (a *Agent) State() model.Stage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(stage model.Stage) {
	a.mu.Lock()
	a.state = stage
	a.mu.Unlock()
	a.log.Info("Agent stage changed", slog.String("stage", string(stage)))
}

// start moves the agent out of idle, it reports false if a run already started.
func (a *Agent) start() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != model.StageIdle {
		return false
	}
	a.state = model.StageExtractingDocuments
	return true
}

// ProcessAndNotify extracts and chunks all documents, answers every question against
// the pooled chunks and posts the report to the configured channel.
// The report is returned whenever it was computed, also if posting it failed.
// The returned error is then the notification error.
// Cancelling ctx before the report is computed aborts the run without a report.
func (a *Agent) ProcessAndNotify(ctx context.Context, questions []string, progress model.ProgressFunc) (*model.Report, error) {
	if !a.start() {
		return nil, helper.NewError("process and notify", ErrAlreadyRun)
	}
	if progress == nil {
		progress = func(model.Progress) {}
	}
	a.log.Info("Agent stage changed", slog.String("stage", string(model.StageExtractingDocuments)))
	started := time.Now()

	report := &model.Report{
		RID:       uuid.New(),
		Channel:   a.config.SlackChannel,
		Questions: make(model.Results, 0, len(questions)),
	}

	chunks, err := a.extractDocuments(ctx, report, progress)
	if err != nil {
		return nil, helper.NewError("extract documents", err)
	}

	a.setState(model.StageAnsweringQuestions)
	err = a.answerQuestions(ctx, chunks, questions, report, progress)
	if err != nil {
		return nil, helper.NewError("answer questions", err)
	}
	report.CreatedAt = time.Now().UTC()

	a.setState(model.StageNotifying)
	err = a.notify(ctx, report)
	a.metrics.Notification(err)
	a.metrics.RunDuration(time.Since(started))
	a.setState(model.StageDone)
	if err != nil {
		return report, helper.NewError("notify", err)
	}

	return report, nil
}

// extractDocuments builds the chunk pool in document order.
// Failing documents are recorded on the report and skipped.
func (a *Agent) extractDocuments(ctx context.Context, report *model.Report, progress model.ProgressFunc) ([]*model.Chunk, error) {
	if a.pipeline == nil {
		return nil, fmt.Errorf("pipeline not set, use SetPipeline() first")
	}

	pool := []*model.Chunk{}
	for i, doc := range a.documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		progress(model.Progress{
			Stage:   model.StageExtractingDocuments,
			Index:   i + 1,
			Total:   len(a.documents),
			Message: fmt.Sprintf("Processing document %d/%d...", i+1, len(a.documents)),
		})

		chunks, err := a.pipeline.Process(doc)
		doc.Release()
		a.metrics.Document(len(chunks), err)
		if err != nil {
			a.log.Warn("Skipping document", slog.String("document_id", doc.RID.String()), slog.String("title", doc.Title), slog.String("error", err.Error()))
			report.DocumentErrors = append(report.DocumentErrors, model.DocumentError{
				DocumentRID: doc.RID,
				Title:       doc.Title,
				Error:       err.Error(),
			})
			continue
		}

		for _, chunk := range chunks {
			chunk.PoolIndex = len(pool)
			pool = append(pool, chunk)
		}
		a.log.Info("Processed document into chunks", slog.Int("num_chunks", len(chunks)), slog.String("document_id", doc.RID.String()))
	}

	return pool, nil
}

// answerQuestions appends one result per question to the report, in question order.
func (a *Agent) answerQuestions(ctx context.Context, chunks []*model.Chunk, questions []string, report *model.Report, progress model.ProgressFunc) error {
	handler := query.NewHandler(a.predictor, a.config.Query, a.log)

	for i, question := range questions {
		if err := ctx.Err(); err != nil {
			return err
		}

		progress(model.Progress{
			Stage:   model.StageAnsweringQuestions,
			Index:   i + 1,
			Total:   len(questions),
			Message: fmt.Sprintf("Processing question %d/%d: '%s'...", i+1, len(questions), question),
		})

		ranking, err := handler.Query(ctx, chunks, question)
		if err != nil {
			return err
		}

		answer := ranking.Answer()
		a.metrics.Predictions(ranking.Evaluated, ranking.Skipped)
		a.metrics.Answer(answer != model.NoAnswer)
		a.log.Info("Answered question",
			slog.String("question", question),
			slog.String("answer", answer),
			slog.Int("candidates", len(ranking.Candidates)),
			slog.Int("skipped_chunks", ranking.Skipped),
		)
		report.Questions = append(report.Questions, model.Result{Question: question, Answer: answer})
	}

	return nil
}

// notify archives the report if an archive is set and posts its payload once.
func (a *Agent) notify(ctx context.Context, report *model.Report) error {
	if a.archive != nil {
		if err := a.archive.InsertReport(report); err != nil {
			a.log.Error("Failed to archive report", slog.String("report_id", report.RID.String()), slog.String("error", err.Error()))
		}
	}

	if a.notifier == nil {
		return fmt.Errorf("notifier not set, use SetNotifier() first")
	}

	payload, err := report.Payload()
	if err != nil {
		return err
	}

	return a.notifier.Post(ctx, a.config.SlackChannel, payload)
}
