package engine

import (
	"sync"
	"time"
)

type EvaluationStatus string

const (
	EvaluationStatusApplied   EvaluationStatus = "applied"
	EvaluationStatusNoInfo    EvaluationStatus = "no-info"
	EvaluationStatusMiss      EvaluationStatus = "miss"
	EvaluationStatusRecovered EvaluationStatus = "recovered"

	inspectorHistoryLimit = 128
)

// Evaluation records the outcome of processing one entry.
type Evaluation struct {
	Timestamp   time.Time        `json:"timestamp"`
	FormType    string           `json:"formType,omitempty"`
	FormID      string           `json:"formId,omitempty"`
	Rule        string           `json:"rule,omitempty"`
	Source      string           `json:"source,omitempty"`
	Status      EvaluationStatus `json:"status"`
	IconUpdated bool             `json:"iconUpdated,omitempty"`
	Error       string           `json:"error,omitempty"`
}

type evaluationLog struct {
	mu      sync.Mutex
	entries []Evaluation
	limit   int
}

func newEvaluationLog(limit int) *evaluationLog {
	if limit <= 0 {
		limit = inspectorHistoryLimit
	}
	return &evaluationLog{limit: limit}
}

func (l *evaluationLog) record(entry Evaluation) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit > 0 && len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.limit-1]
	}
	l.entries = append(l.entries, entry)
}

func (l *evaluationLog) snapshot() []Evaluation {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	return append([]Evaluation(nil), l.entries...)
}
