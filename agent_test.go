package askpdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/siherrmann/askpdf/core/metrics"
	"github.com/siherrmann/askpdf/core/notify"
	"github.com/siherrmann/askpdf/core/pipeline"
	"github.com/siherrmann/askpdf/core/query"
	"github.com/siherrmann/askpdf/helper"
	"github.com/siherrmann/askpdf/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNotifier keeps every posted payload.
type recordingNotifier struct {
	mu       sync.Mutex
	channels []string
	payloads []string
	err      error
}

func (n *recordingNotifier) Post(ctx context.Context, channel string, payload string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, channel)
	n.payloads = append(n.payloads, payload)
	return n.err
}

type recordingArchive struct {
	reports []*model.Report
	err     error
}

func (a *recordingArchive) InsertReport(report *model.Report) error {
	a.reports = append(a.reports, report)
	return a.err
}

// keywordPredictor answers with the first registered answer whose keyword appears in the chunk.
func keywordPredictor(answers map[string]model.Prediction) query.PredictorFunc {
	return func(ctx context.Context, passage string, question string) (model.Prediction, error) {
		for keyword, prediction := range answers {
			if strings.Contains(passage, keyword) {
				return prediction, nil
			}
		}
		return model.Prediction{Answer: "unrelated", Score: 0.01}, nil
	}
}

func newTestAgent(t *testing.T, documents []*model.Document, predictor query.Predictor) (*Agent, *recordingNotifier) {
	agent, err := NewAgent(model.DefaultAgentConfig(), documents, helper.NewLogger(io.Discard, 0))
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	agent.SetPipeline(pipeline.NewPipeline(pipeline.PlainTextExtractor(), pipeline.TextChunker(1000)))
	agent.SetPredictor(predictor)
	agent.SetNotifier(notifier)
	return agent, notifier
}

func TestNewAgent(t *testing.T) {
	t.Run("Valid call NewAgent", func(t *testing.T) {
		agent, err := NewAgent(model.DefaultAgentConfig(), nil, nil)

		require.NoError(t, err, "Expected NewAgent to not return an error")
		require.NotNil(t, agent)
		assert.Equal(t, model.StageIdle, agent.State())
		assert.NotNil(t, agent.pipeline, "Expected default pipeline")
		assert.IsType(t, &query.InferenceClient{}, agent.predictor)
		assert.IsType(t, &notify.RetryNotifier{}, agent.notifier)
		assert.Nil(t, agent.archive)
	})

	t.Run("Default notifier logs to the given logger", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
		}))
		defer server.Close()
		config := model.DefaultAgentConfig()
		config.SlackAPIURL = server.URL
		config.SlackChannel = "C123"
		var buf bytes.Buffer
		docs := []*model.Document{model.NewDocument("france", []byte("Paris is the capital of France."))}

		agent, err := NewAgent(config, docs, helper.NewLogger(&buf, slog.LevelInfo))
		require.NoError(t, err)
		agent.SetPipeline(pipeline.NewPipeline(pipeline.PlainTextExtractor(), pipeline.TextChunker(1000)))
		agent.SetPredictor(keywordPredictor(map[string]model.Prediction{"Paris": {Answer: "Paris", Score: 0.97}}))

		_, err = agent.ProcessAndNotify(context.Background(), []string{"What is the capital of France?"}, nil)

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Posted message to slack")
	})

	t.Run("Invalid model name", func(t *testing.T) {
		config := model.DefaultAgentConfig()
		config.ModelName = ""

		agent, err := NewAgent(config, nil, nil)

		assert.Error(t, err)
		assert.Nil(t, agent)
	})

	t.Run("Missing slack token", func(t *testing.T) {
		config := model.DefaultAgentConfig()
		config.SlackToken = ""

		agent, err := NewAgent(config, nil, nil)

		assert.Error(t, err)
		assert.Nil(t, agent)
	})
}

func TestProcessAndNotify(t *testing.T) {
	t.Run("Answers capital question and posts payload", func(t *testing.T) {
		docs := []*model.Document{model.NewDocument("france", []byte("Paris is the capital of France."))}
		agent, notifier := newTestAgent(t, docs, keywordPredictor(map[string]model.Prediction{
			"Paris": {Answer: "Paris", Score: 0.97},
		}))

		report, err := agent.ProcessAndNotify(context.Background(), []string{"What is the capital of France?"}, nil)

		require.NoError(t, err)
		require.NotNil(t, report)
		assert.Equal(t, model.Results{{Question: "What is the capital of France?", Answer: "Paris"}}, report.Questions)
		assert.Equal(t, model.StageDone, agent.State())
		require.Len(t, notifier.payloads, 1)
		assert.Equal(t, model.DefaultAgentConfig().SlackChannel, notifier.channels[0])
		assert.Equal(t, "{\n    \"questions\": [\n        {\n            \"question\": \"What is the capital of France?\",\n            \"answer\": \"Paris\"\n        }\n    ]\n}", notifier.payloads[0])
		assert.Nil(t, docs[0].Content, "Expected document content to be released")
	})

	t.Run("Empty document list gives no answer", func(t *testing.T) {
		agent, notifier := newTestAgent(t, nil, keywordPredictor(nil))

		report, err := agent.ProcessAndNotify(context.Background(), []string{"What is the capital of France?"}, nil)

		require.NoError(t, err)
		assert.Equal(t, model.Results{{Question: "What is the capital of France?", Answer: model.NoAnswer}}, report.Questions)
		assert.Len(t, notifier.payloads, 1)
	})

	t.Run("Highest score across documents wins", func(t *testing.T) {
		docs := []*model.Document{
			model.NewDocument("first", []byte("Lyon is a large city.")),
			model.NewDocument("second", []byte("Paris is the capital of France.")),
		}
		agent, _ := newTestAgent(t, docs, keywordPredictor(map[string]model.Prediction{
			"Lyon":  {Answer: "Lyon", Score: 0.4},
			"Paris": {Answer: "Paris", Score: 0.9},
		}))

		report, err := agent.ProcessAndNotify(context.Background(), []string{"What is the capital of France?"}, nil)

		require.NoError(t, err)
		assert.Equal(t, "Paris", report.Questions[0].Answer)
	})

	t.Run("Equal scores resolve to the earliest document", func(t *testing.T) {
		docs := []*model.Document{
			model.NewDocument("first", []byte("Alpha text.")),
			model.NewDocument("second", []byte("Beta text.")),
		}
		agent, _ := newTestAgent(t, docs, keywordPredictor(map[string]model.Prediction{
			"Alpha": {Answer: "alpha", Score: 0.5},
			"Beta":  {Answer: "beta", Score: 0.5},
		}))

		report, err := agent.ProcessAndNotify(context.Background(), []string{"q"}, nil)

		require.NoError(t, err)
		assert.Equal(t, "alpha", report.Questions[0].Answer)
	})

	t.Run("One result per question in input order", func(t *testing.T) {
		docs := []*model.Document{model.NewDocument("doc", []byte("Paris is the capital of France."))}
		agent, notifier := newTestAgent(t, docs, query.PredictorFunc(func(ctx context.Context, passage string, question string) (model.Prediction, error) {
			if strings.Contains(question, "capital") {
				return model.Prediction{Answer: "Paris", Score: 0.9}, nil
			}
			return model.Prediction{Answer: "France", Score: 0.1}, nil
		}))
		questions := []string{"What is the capital?", "What is the currency?", "Name the capital again"}

		report, err := agent.ProcessAndNotify(context.Background(), questions, nil)

		require.NoError(t, err)
		require.Len(t, report.Questions, 3)
		for i, question := range questions {
			assert.Equal(t, question, report.Questions[i].Question)
		}
		assert.Equal(t, []string{"Paris", model.NoAnswer, "Paris"}, []string{
			report.Questions[0].Answer, report.Questions[1].Answer, report.Questions[2].Answer,
		})

		parsed, err := model.ParsePayload(notifier.payloads[0])
		require.NoError(t, err)
		assert.Equal(t, report.Questions, parsed, "Expected payload to round trip")
	})

	t.Run("No questions posts an empty list", func(t *testing.T) {
		agent, notifier := newTestAgent(t, nil, keywordPredictor(nil))

		report, err := agent.ProcessAndNotify(context.Background(), nil, nil)

		require.NoError(t, err)
		assert.Empty(t, report.Questions)
		assert.Equal(t, "{\n    \"questions\": []\n}", notifier.payloads[0])
	})

	t.Run("Sentinel answers from the model are passed over", func(t *testing.T) {
		docs := []*model.Document{
			model.NewDocument("a", []byte("Alpha text.")),
			model.NewDocument("b", []byte("Beta text.")),
		}
		agent, _ := newTestAgent(t, docs, keywordPredictor(map[string]model.Prediction{
			"Alpha": {Answer: model.NoAnswer, Score: 0.9},
			"Beta":  {Answer: "beta", Score: 0.5},
		}))

		report, err := agent.ProcessAndNotify(context.Background(), []string{"q"}, nil)

		require.NoError(t, err)
		assert.Equal(t, "beta", report.Questions[0].Answer)
	})

	t.Run("Failing document is recorded and others continue", func(t *testing.T) {
		docs := []*model.Document{
			model.NewDocument("broken", []byte{0xff, 0xfe, 0xfd}),
			model.NewDocument("good", []byte("Paris is the capital of France.")),
		}
		agent, notifier := newTestAgent(t, docs, keywordPredictor(map[string]model.Prediction{
			"Paris": {Answer: "Paris", Score: 0.9},
		}))

		report, err := agent.ProcessAndNotify(context.Background(), []string{"What is the capital of France?"}, nil)

		require.NoError(t, err)
		assert.Equal(t, "Paris", report.Questions[0].Answer)
		require.Len(t, report.DocumentErrors, 1)
		assert.Equal(t, docs[0].RID, report.DocumentErrors[0].DocumentRID)
		assert.Equal(t, "broken", report.DocumentErrors[0].Title)
		assert.Contains(t, report.DocumentErrors[0].Error, "UTF-8")
		assert.NotContains(t, notifier.payloads[0], "broken", "Expected document errors to stay out of the payload")
	})

	t.Run("Failing model calls are skipped", func(t *testing.T) {
		docs := []*model.Document{
			model.NewDocument("a", []byte("Alpha text.")),
			model.NewDocument("b", []byte("Paris is the capital of France.")),
		}
		agent, _ := newTestAgent(t, docs, query.PredictorFunc(func(ctx context.Context, passage string, question string) (model.Prediction, error) {
			if strings.Contains(passage, "Alpha") {
				return model.Prediction{}, errors.New("model unavailable")
			}
			return model.Prediction{Answer: "Paris", Score: 0.9}, nil
		}))

		report, err := agent.ProcessAndNotify(context.Background(), []string{"q"}, nil)

		require.NoError(t, err)
		assert.Equal(t, "Paris", report.Questions[0].Answer)
	})

	t.Run("Notification failure still returns the report", func(t *testing.T) {
		docs := []*model.Document{model.NewDocument("doc", []byte("Paris is the capital of France."))}
		agent, notifier := newTestAgent(t, docs, keywordPredictor(map[string]model.Prediction{
			"Paris": {Answer: "Paris", Score: 0.9},
		}))
		notifier.err = errors.New("invalid_auth")

		report, err := agent.ProcessAndNotify(context.Background(), []string{"q"}, nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, notifier.err)
		require.NotNil(t, report)
		assert.Equal(t, "Paris", report.Questions[0].Answer)
		assert.Equal(t, model.StageDone, agent.State())
		assert.Len(t, notifier.payloads, 1, "Expected exactly one delivery attempt")
	})

	t.Run("Reports progress for every document and question", func(t *testing.T) {
		docs := []*model.Document{
			model.NewDocument("a", []byte("Alpha text.")),
			model.NewDocument("b", []byte("Beta text.")),
		}
		agent, _ := newTestAgent(t, docs, keywordPredictor(nil))
		updates := []model.Progress{}
		stages := []model.Stage{}

		_, err := agent.ProcessAndNotify(context.Background(), []string{"Who?", "Where?"}, func(p model.Progress) {
			updates = append(updates, p)
			stages = append(stages, agent.State())
		})

		require.NoError(t, err)
		messages := []string{}
		for _, update := range updates {
			messages = append(messages, update.Message)
		}
		assert.Equal(t, []string{
			"Processing document 1/2...",
			"Processing document 2/2...",
			"Processing question 1/2: 'Who?'...",
			"Processing question 2/2: 'Where?'...",
		}, messages)
		assert.Equal(t, []model.Stage{
			model.StageExtractingDocuments,
			model.StageExtractingDocuments,
			model.StageAnsweringQuestions,
			model.StageAnsweringQuestions,
		}, stages)
		assert.Equal(t, 2, updates[3].Index)
		assert.Equal(t, 2, updates[3].Total)
	})

	t.Run("Archives report before posting", func(t *testing.T) {
		docs := []*model.Document{model.NewDocument("doc", []byte("Paris is the capital of France."))}
		agent, notifier := newTestAgent(t, docs, keywordPredictor(map[string]model.Prediction{
			"Paris": {Answer: "Paris", Score: 0.9},
		}))
		archive := &recordingArchive{}
		agent.SetArchive(archive)

		report, err := agent.ProcessAndNotify(context.Background(), []string{"q"}, nil)

		require.NoError(t, err)
		require.Len(t, archive.reports, 1)
		assert.Same(t, report, archive.reports[0])
		assert.Equal(t, model.DefaultAgentConfig().SlackChannel, archive.reports[0].Channel)
		assert.False(t, archive.reports[0].CreatedAt.IsZero())
		assert.Len(t, notifier.payloads, 1)
	})

	t.Run("Archive failure does not fail the run", func(t *testing.T) {
		agent, notifier := newTestAgent(t, nil, keywordPredictor(nil))
		agent.SetArchive(&recordingArchive{err: errors.New("database down")})

		report, err := agent.ProcessAndNotify(context.Background(), []string{"q"}, nil)

		require.NoError(t, err)
		require.NotNil(t, report)
		assert.Len(t, notifier.payloads, 1)
	})

	t.Run("Records run metrics", func(t *testing.T) {
		docs := []*model.Document{
			model.NewDocument("broken", []byte{0xff}),
			model.NewDocument("good", []byte("Paris is the capital of France.")),
		}
		agent, _ := newTestAgent(t, docs, keywordPredictor(map[string]model.Prediction{
			"Paris": {Answer: "Paris", Score: 0.9},
		}))
		recorder := metrics.NewRecorder()
		agent.SetMetrics(recorder)

		_, err := agent.ProcessAndNotify(context.Background(), []string{"capital?", "currency?"}, nil)
		require.NoError(t, err)

		families, err := recorder.Registry().Gather()
		require.NoError(t, err)
		values := map[string]float64{}
		for _, family := range families {
			for _, m := range family.GetMetric() {
				name := family.GetName()
				for _, label := range m.GetLabel() {
					name += "_" + label.GetValue()
				}
				if m.GetCounter() != nil {
					values[name] = m.GetCounter().GetValue()
				}
			}
		}
		assert.Equal(t, 1.0, values["askpdf_documents_total_ok"])
		assert.Equal(t, 1.0, values["askpdf_documents_total_failed"])
		assert.Equal(t, 1.0, values["askpdf_chunks_total"])
		assert.Equal(t, 2.0, values["askpdf_predictions_total_ok"])
		assert.Equal(t, 2.0, values["askpdf_answers_total_answered"], "Expected both questions to match the Paris chunk")
		assert.Equal(t, 1.0, values["askpdf_notifications_total_ok"])
	})

	t.Run("Cancelled context aborts without report", func(t *testing.T) {
		docs := []*model.Document{model.NewDocument("doc", []byte("Paris is the capital of France."))}
		agent, notifier := newTestAgent(t, docs, keywordPredictor(nil))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := agent.ProcessAndNotify(ctx, []string{"q"}, nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, report)
		assert.Empty(t, notifier.payloads)
	})

	t.Run("Cancelling while answering aborts without report", func(t *testing.T) {
		docs := []*model.Document{model.NewDocument("doc", []byte("Paris is the capital of France."))}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		agent, notifier := newTestAgent(t, docs, query.PredictorFunc(func(ctx context.Context, passage string, question string) (model.Prediction, error) {
			cancel()
			return model.Prediction{}, ctx.Err()
		}))

		report, err := agent.ProcessAndNotify(ctx, []string{"q1", "q2"}, nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, report)
		assert.Empty(t, notifier.payloads)
		assert.Equal(t, model.StageAnsweringQuestions, agent.State())
	})

	t.Run("Agent runs only once", func(t *testing.T) {
		agent, notifier := newTestAgent(t, nil, keywordPredictor(nil))

		_, err := agent.ProcessAndNotify(context.Background(), []string{"q"}, nil)
		require.NoError(t, err)
		report, err := agent.ProcessAndNotify(context.Background(), []string{"q"}, nil)

		assert.ErrorIs(t, err, ErrAlreadyRun)
		assert.Nil(t, report)
		assert.Len(t, notifier.payloads, 1)
	})

	t.Run("Missing pipeline", func(t *testing.T) {
		agent, _ := newTestAgent(t, nil, keywordPredictor(nil))
		agent.SetPipeline(nil)

		report, err := agent.ProcessAndNotify(context.Background(), []string{"q"}, nil)

		assert.Error(t, err)
		assert.Nil(t, report)
	})

	t.Run("Parallel workers keep results", func(t *testing.T) {
		config := model.DefaultAgentConfig()
		config.Query.Workers = 4
		docs := []*model.Document{
			model.NewDocument("a", []byte("Alpha text.")),
			model.NewDocument("b", []byte("Beta text.")),
			model.NewDocument("c", []byte("Gamma text.")),
		}
		agent, err := NewAgent(config, docs, helper.NewLogger(io.Discard, 0))
		require.NoError(t, err)
		notifier := &recordingNotifier{}
		agent.SetPipeline(pipeline.NewPipeline(pipeline.PlainTextExtractor(), pipeline.TextChunker(1000)))
		agent.SetPredictor(keywordPredictor(map[string]model.Prediction{
			"Alpha": {Answer: "alpha", Score: 0.6},
			"Beta":  {Answer: "beta", Score: 0.6},
			"Gamma": {Answer: "gamma", Score: 0.6},
		}))
		agent.SetNotifier(notifier)

		report, err := agent.ProcessAndNotify(context.Background(), []string{"q"}, nil)

		require.NoError(t, err)
		assert.Equal(t, "alpha", report.Questions[0].Answer)
	})
}
