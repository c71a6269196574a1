package model

import "time"

// QueryConfig configures how a question is evaluated against the chunk pool.
type QueryConfig struct {
	// Minimum score a candidate needs to be kept
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	// Number of concurrent model calls per question, 1 runs sequentially
	Workers int `json:"workers"`
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		ConfidenceThreshold: 0.3,
		Workers:             1,
	}
}

// AgentConfig holds everything an agent run needs.
// It is built once at the top and passed down by value.
type AgentConfig struct {
	// Question answering model
	ModelName        string        `json:"model_name"`
	InferenceURL     string        `json:"inference_url"`
	InferenceToken   string        `json:"-"`
	InferenceRetries uint64        `json:"inference_retries"`
	RequestTimeout   time.Duration `json:"request_timeout"`

	// Notification channel
	SlackToken    string `json:"-"`
	SlackChannel  string `json:"slack_channel"`
	SlackAPIURL   string `json:"slack_api_url,omitempty"`
	NotifyRetries uint64 `json:"notify_retries"`

	// Chunking, in characters
	ChunkSize int `json:"chunk_size"`

	Query QueryConfig `json:"query"`
}

// DefaultAgentConfig returns the configuration used when nothing is overridden.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		ModelName:        "deepset/roberta-base-squad2",
		InferenceURL:     "https://router.huggingface.co/hf-inference/models",
		InferenceRetries: 2,
		RequestTimeout:   30 * time.Second,
		SlackToken:       "dummy",
		SlackChannel:     "C07T3RT54MQ",
		NotifyRetries:    3,
		ChunkSize:        1000,
		Query:            DefaultQueryConfig(),
	}
}

// WithOverrides returns a copy with the given values replacing the configured ones.
// Empty values keep the configured value.
func (c AgentConfig) WithOverrides(modelName string, slackToken string, slackChannel string) AgentConfig {
	if modelName != "" {
		c.ModelName = modelName
	}
	if slackToken != "" {
		c.SlackToken = slackToken
	}
	if slackChannel != "" {
		c.SlackChannel = slackChannel
	}
	return c
}
