package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/siherrmann/askpdf/model"
)

// ErrInference is returned when the inference API rejects a request.
var ErrInference = errors.New("inference request failed")

// InferenceClient runs extractive question answering through the Hugging Face inference API.
type InferenceClient struct {
	endpoint   string
	token      string
	retries    uint64
	httpClient *http.Client

	// initial backoff interval between retries
	retryInterval time.Duration
}

// NewInferenceClient creates a client for the model configured in config.
func NewInferenceClient(config model.AgentConfig) (*InferenceClient, error) {
	if config.ModelName == "" {
		return nil, fmt.Errorf("model name must be set")
	}

	base, err := url.Parse(strings.TrimSuffix(config.InferenceURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid inference url %q", config.InferenceURL)
	}

	return &InferenceClient{
		endpoint:      base.String() + "/" + config.ModelName,
		token:         config.InferenceToken,
		retries:       config.InferenceRetries,
		httpClient:    &http.Client{Timeout: config.RequestTimeout},
		retryInterval: 500 * time.Millisecond,
	}, nil
}

// Endpoint returns the url predictions are posted to.
func (c *InferenceClient) Endpoint() string {
	return c.endpoint
}

type inferenceInputs struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type inferenceRequest struct {
	Inputs inferenceInputs `json:"inputs"`
}

// Predict implements Predictor.
func (c *InferenceClient) Predict(ctx context.Context, passage string, question string) (model.Prediction, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs: inferenceInputs{Question: question, Context: passage},
	})
	if err != nil {
		return model.Prediction{}, err
	}

	var prediction model.Prediction
	operation := func() error {
		p, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		prediction = p
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	err = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx))
	if err != nil {
		return model.Prediction{}, err
	}

	return prediction, nil
}

func (c *InferenceClient) post(ctx context.Context, body []byte) (model.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.Prediction{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return model.Prediction{}, backoff.Permanent(ctx.Err())
		}
		return model.Prediction{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.Prediction{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := fmt.Errorf("%w: status %d: %s", ErrInference, resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return model.Prediction{}, statusErr
		}
		return model.Prediction{}, backoff.Permanent(statusErr)
	}

	prediction, err := decodePrediction(respBody)
	if err != nil {
		return model.Prediction{}, backoff.Permanent(err)
	}
	return prediction, nil
}

// decodePrediction accepts a single answer object or a list of answers, best first.
func decodePrediction(body []byte) (model.Prediction, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var predictions []model.Prediction
		if err := json.Unmarshal(trimmed, &predictions); err != nil {
			return model.Prediction{}, fmt.Errorf("failed to decode inference response: %w", err)
		}
		if len(predictions) == 0 {
			return model.Prediction{}, nil
		}
		return predictions[0], nil
	}

	var prediction model.Prediction
	if err := json.Unmarshal(trimmed, &prediction); err != nil {
		return model.Prediction{}, fmt.Errorf("failed to decode inference response: %w", err)
	}
	return prediction, nil
}
