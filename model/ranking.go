package model

// Prediction is the raw output of one model call on a (chunk, question) pair.
type Prediction struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
}

// Candidate is a prediction that passed the confidence threshold.
type Candidate struct {
	Answer    string  `json:"answer"`
	Score     float64 `json:"score"`
	PoolIndex int     `json:"pool_index"`
}

// Ranking holds the candidates of one question, best first.
type Ranking struct {
	Question   string      `json:"question"`
	Candidates []Candidate `json:"candidates"`
	Evaluated  int         `json:"evaluated"`
	Skipped    int         `json:"skipped"`
}

// Answers returns the ranked answer texts, or only NoAnswer if nothing passed the threshold.
func (r *Ranking) Answers() []string {
	if len(r.Candidates) == 0 {
		return []string{NoAnswer}
	}

	answers := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		answers = append(answers, c.Answer)
	}
	return answers
}

// Best returns the top candidate.
func (r *Ranking) Best() (Candidate, bool) {
	if len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// Answer returns the first ranked answer that isn't the NoAnswer sentinel.
func (r *Ranking) Answer() string {
	for _, answer := range r.Answers() {
		if answer != NoAnswer {
			return answer
		}
	}
	return NoAnswer
}
