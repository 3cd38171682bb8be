package workstation

import (
	"context"
	"errors"
	"strings"
)

// GenericSubmitError is shown when a failed submission carries no detail.
const GenericSubmitError = "Failed to start generation. Please try again."

// Outcome is one of the three transitions of a submission.
type Outcome int

const (
	// OutcomeInserted means the optimistic record is in the store and the
	// create call has not resolved yet.
	OutcomeInserted Outcome = iota
	// OutcomeUpgraded means the temp id was replaced by the server id.
	OutcomeUpgraded
	// OutcomeRolledBack means the create call failed and the temp record was removed.
	OutcomeRolledBack
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpgraded:
		return "upgraded"
	case OutcomeRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// SubmitResult describes how a submission resolved.
type SubmitResult struct {
	Outcome      Outcome
	TempID       string
	GenerationID string
	// Message is the user-visible text surfaced on rollback.
	Message string
	Err     error
	// Stale is set when the session moved to another shot before the create
	// call resolved; the store was left alone.
	Stale bool
}

// Submission tracks one fire-and-forget create call.
type Submission struct {
	TempID string
	Record GenerationRecord

	done   chan struct{}
	result SubmitResult
}

func newSubmission(rec GenerationRecord) *Submission {
	return &Submission{
		TempID: rec.ID,
		Record: rec,
		done:   make(chan struct{}),
		result: SubmitResult{Outcome: OutcomeInserted, TempID: rec.ID},
	}
}

// Done is closed once the submission resolves.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Result returns the current result. Before resolution it reports OutcomeInserted.
func (s *Submission) Result() SubmitResult {
	select {
	case <-s.done:
		return s.result
	default:
		return SubmitResult{Outcome: OutcomeInserted, TempID: s.TempID}
	}
}

// Wait blocks until the submission resolves or ctx is done.
func (s *Submission) Wait(ctx context.Context) (SubmitResult, error) {
	select {
	case <-s.done:
		return s.result, nil
	case <-ctx.Done():
		return s.Result(), ctx.Err()
	}
}

func (s *Submission) finish(r SubmitResult) {
	s.result = r
	close(s.done)
}

// ErrorDetail extracts the user-facing message of a failed call: the
// backend's detail when the error carries one, else GenericSubmitError.
func ErrorDetail(err error) string {
	var detailed interface{ ErrorDetail() string }
	if errors.As(err, &detailed) {
		if detail := strings.TrimSpace(detailed.ErrorDetail()); detail != "" {
			return detail
		}
	}
	return GenericSubmitError
}
