package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/siherrmann/askpdf/helper"
	"github.com/siherrmann/askpdf/model"
	"golang.org/x/sync/errgroup"
)

// Handler evaluates questions against a pool of chunks.
type Handler struct {
	predictor Predictor
	config    model.QueryConfig
	log       *slog.Logger
}

// NewHandler creates a new query handler.
// Workers below 1 are treated as 1.
func NewHandler(predictor Predictor, config model.QueryConfig, logger *slog.Logger) *Handler {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		predictor: predictor,
		config:    config,
		log:       logger,
	}
}

// Config returns the query configuration of the handler.
func (h *Handler) Config() model.QueryConfig {
	return h.config
}

type chunkPrediction struct {
	prediction model.Prediction
	err        error
}

// Query runs the question against every chunk and ranks the candidates reaching the confidence threshold.
// A chunk whose model call fails is skipped and counted in Ranking.Skipped.
// Only cancellation of ctx aborts the question.
func (h *Handler) Query(ctx context.Context, chunks []*model.Chunk, question string) (*model.Ranking, error) {
	if h.predictor == nil {
		return nil, helper.NewError("query", fmt.Errorf("predictor not set"))
	}

	predictions, err := h.predict(ctx, chunks, question)
	if err != nil {
		return nil, helper.NewError("query", err)
	}

	ranking := &model.Ranking{
		Question:  question,
		Evaluated: len(chunks),
	}

	candidates := make([]model.Candidate, 0, len(chunks))
	for i, p := range predictions {
		if p.err != nil {
			ranking.Skipped++
			h.log.Warn("Skipping chunk after failed model call",
				slog.Int("pool_index", chunks[i].PoolIndex),
				slog.String("question", question),
				slog.String("error", p.err.Error()),
			)
			continue
		}

		h.log.Debug("Predicted answer",
			slog.Int("pool_index", chunks[i].PoolIndex),
			slog.String("answer", p.prediction.Answer),
			slog.Float64("score", p.prediction.Score),
		)

		candidates = append(candidates, model.Candidate{
			Answer:    p.prediction.Answer,
			Score:     p.prediction.Score,
			PoolIndex: chunks[i].PoolIndex,
		})
	}

	ranking.Candidates = Rank(candidates, h.config.ConfidenceThreshold)

	return ranking, nil
}

// predict returns one prediction per chunk, in chunk order.
func (h *Handler) predict(ctx context.Context, chunks []*model.Chunk, question string) ([]chunkPrediction, error) {
	predictions := make([]chunkPrediction, len(chunks))

	if h.config.Workers == 1 {
		for i, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			predictions[i] = h.predictOne(ctx, chunk, question)
		}
		return predictions, ctx.Err()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(h.config.Workers)
	for i, chunk := range chunks {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			predictions[i] = h.predictOne(groupCtx, chunk, question)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// A call failing because ctx ended must not count as a skipped chunk
	return predictions, ctx.Err()
}

func (h *Handler) predictOne(ctx context.Context, chunk *model.Chunk, question string) chunkPrediction {
	prediction, err := h.predictor.Predict(ctx, chunk.Content, question)
	return chunkPrediction{prediction: prediction, err: err}
}

// Rank keeps the candidates with a score of at least threshold and sorts them by score, highest first.
// Candidates with equal scores keep their input order.
func Rank(candidates []model.Candidate, threshold float64) []model.Candidate {
	ranked := make([]model.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Score >= threshold {
			ranked = append(ranked, candidate)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}
