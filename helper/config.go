package helper

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/siherrmann/askpdf/model"
)

// NewAgentConfiguration builds the agent configuration from the environment.
// A .env file in the working directory is loaded first if present,
// variables that are already set take precedence over it.
// Unset variables keep the values of model.DefaultAgentConfig.
func NewAgentConfiguration() (model.AgentConfig, error) {
	if err := loadDotEnv(".env"); err != nil {
		return model.AgentConfig{}, NewError("load .env", err)
	}

	config := model.DefaultAgentConfig()

	setString(&config.ModelName, "HUGGINGFACE_MODEL")
	setString(&config.InferenceToken, "HUGGINGFACE_API_TOKEN")
	setString(&config.InferenceURL, "HUGGINGFACE_INFERENCE_URL")
	setString(&config.SlackToken, "SLACK_API_TOKEN")
	setString(&config.SlackChannel, "SLACK_CHANNEL")
	setString(&config.SlackAPIURL, "SLACK_API_URL")

	if err := setUint(&config.InferenceRetries, "HUGGINGFACE_RETRIES"); err != nil {
		return model.AgentConfig{}, err
	}
	if err := setUint(&config.NotifyRetries, "SLACK_RETRIES"); err != nil {
		return model.AgentConfig{}, err
	}
	if err := setInt(&config.ChunkSize, "QA_CHUNK_SIZE"); err != nil {
		return model.AgentConfig{}, err
	}
	if err := setInt(&config.Query.Workers, "QA_WORKERS"); err != nil {
		return model.AgentConfig{}, err
	}

	if value, ok := os.LookupEnv("QA_CONFIDENCE_THRESHOLD"); ok && value != "" {
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return model.AgentConfig{}, NewError("parse QA_CONFIDENCE_THRESHOLD", err)
		}
		config.Query.ConfidenceThreshold = threshold
	}

	if value, ok := os.LookupEnv("QA_REQUEST_TIMEOUT"); ok && value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return model.AgentConfig{}, NewError("parse QA_REQUEST_TIMEOUT", err)
		}
		config.RequestTimeout = timeout
	}

	if config.ChunkSize <= 0 {
		return model.AgentConfig{}, NewError("validate QA_CHUNK_SIZE", fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize))
	}
	if config.Query.Workers <= 0 {
		return model.AgentConfig{}, NewError("validate QA_WORKERS", fmt.Errorf("workers must be positive, got %d", config.Query.Workers))
	}

	return config, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func setString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*target = value
	}
}

func setInt(target *int, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return NewError("parse "+key, err)
	}
	*target = parsed
	return nil
}

func setUint(target *uint64, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return NewError("parse "+key, err)
	}
	*target = parsed
	return nil
}
