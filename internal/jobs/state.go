// file: internal/jobs/state.go
// version: 1.1.0
// guid: 4f5a6b7c-8d9e-4f0a-b1c2-d3e4f5a6b7c8

package jobs

import (
	"time"
)

// Status is the lifecycle state of a batch enrichment job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPartial   Status = "partial"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further item results can change the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusPartial, StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// ItemInput identifies one book to enrich. ISBN takes precedence when set,
// otherwise title and author drive a search.
type ItemInput struct {
	ISBN   string `json:"isbn,omitempty"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
}

// Empty reports whether the input carries nothing to look up.
func (in ItemInput) Empty() bool {
	return in.ISBN == "" && in.Title == "" && in.Author == ""
}

// Item outcomes.
const (
	OutcomePending = "pending"
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
)

// ItemResult records the outcome of one batch item, in submission order.
type ItemResult struct {
	Index     int       `json:"index"`
	Input     ItemInput `json:"input"`
	Outcome   string    `json:"outcome"`
	BookID    string    `json:"bookId,omitempty"`
	ErrorKind string    `json:"errorKind,omitempty"`
}

// JobState is everything the actor persists about a job except the auth
// token, which lives in its own record so the pair can be swapped
// atomically on refresh.
type JobState struct {
	JobID          string       `json:"jobId"`
	OwnerPrincipal string       `json:"ownerPrincipal"`
	Status         Status       `json:"status"`
	TotalItems     int          `json:"totalItems"`
	CompletedItems int          `json:"completedItems"`
	FailedItems    int          `json:"failedItems"`
	PerItemResults []ItemResult `json:"perItemResults"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	Version        int64        `json:"version"`
}

// Clone returns a deep copy safe to hand outside the actor goroutine.
func (s *JobState) Clone() JobState {
	out := *s
	out.PerItemResults = append([]ItemResult(nil), s.PerItemResults...)
	return out
}

// terminalStatus derives the final status from the item counters.
func terminalStatus(completed, failed, total int) Status {
	switch {
	case failed == 0:
		return StatusCompleted
	case failed == total:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// Progress is the payload of progress and snapshot stream messages.
type Progress struct {
	Status         Status `json:"status"`
	TotalItems     int    `json:"totalItems"`
	CompletedItems int    `json:"completedItems"`
	FailedItems    int    `json:"failedItems"`
}

func (s *JobState) progress() Progress {
	return Progress{
		Status:         s.Status,
		TotalItems:     s.TotalItems,
		CompletedItems: s.CompletedItems,
		FailedItems:    s.FailedItems,
	}
}
