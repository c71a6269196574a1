package query

import (
	"context"

	"github.com/siherrmann/askpdf/model"
)

// Predictor extracts the best scoring answer span for a question from a context text.
type Predictor interface {
	Predict(ctx context.Context, context string, question string) (model.Prediction, error)
}

// PredictorFunc adapts a function to the Predictor interface.
type PredictorFunc func(ctx context.Context, context string, question string) (model.Prediction, error)

func (f PredictorFunc) Predict(ctx context.Context, context string, question string) (model.Prediction, error) {
	return f(ctx, context, question)
}
