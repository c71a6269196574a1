package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NoAnswer is the answer recorded when no candidate reaches the confidence threshold.
const NoAnswer = "Data Not Available"

// Result is the answer picked for one question.
type Result struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Results is an ordered list of results, stored as JSONB.
type Results []Result

// Value implements the driver.Valuer interface for database storage
func (r Results) Value() (driver.Value, error) {
	if r == nil {
		return json.Marshal(Results{})
	}
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for database retrieval
func (r *Results) Scan(value interface{}) error {
	if value == nil {
		*r = Results{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, r)
}

// DocumentError records a document that could not be extracted or chunked.
type DocumentError struct {
	DocumentRID uuid.UUID `json:"document_rid"`
	Title       string    `json:"title"`
	Error       string    `json:"error"`
}

// Report is the outcome of one agent run.
type Report struct {
	ID             int             `json:"id"`
	RID            uuid.UUID       `json:"rid"`
	Channel        string          `json:"channel"`
	Questions      Results         `json:"questions"`
	DocumentErrors []DocumentError `json:"document_errors,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type payload struct {
	Questions Results `json:"questions"`
}

// Payload serializes the report results as the message posted to the channel:
// {"questions": [{"question": ..., "answer": ...}]} indented with four spaces.
func (r *Report) Payload() (string, error) {
	questions := r.Questions
	if questions == nil {
		questions = Results{}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(payload{Questions: questions}); err != nil {
		return "", err
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ParsePayload parses a message created by Report.Payload back into its results.
func ParsePayload(message string) (Results, error) {
	var p payload
	if err := json.Unmarshal([]byte(message), &p); err != nil {
		return nil, err
	}
	if p.Questions == nil {
		return nil, errors.New("payload has no questions key")
	}
	return p.Questions, nil
}
