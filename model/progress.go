package model

// Stage is a state of an agent run.
type Stage string

const (
	StageIdle                Stage = "idle"
	StageExtractingDocuments Stage = "extracting_documents"
	StageAnsweringQuestions  Stage = "answering_questions"
	StageNotifying           Stage = "notifying"
	StageDone                Stage = "done"
)

// Progress is reported on every document and question transition.
// Index is 1-based.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ProgressFunc receives progress updates. It is purely observational.
type ProgressFunc func(Progress)
