package workstation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrSessionClosed      = errors.New("workstation: session closed")
	ErrNoShot             = errors.New("workstation: no shot open")
	ErrGenerationNotFound = errors.New("workstation: generation not found")
	ErrRestoreDeclined    = errors.New("workstation: restore not confirmed")
	ErrNoBlobFetcher      = errors.New("workstation: no blob fetcher configured")

	errSubmissionRejected = errors.New("generation was not accepted")
)

const defaultSubmitTimeout = 2 * time.Minute

// RestoreConfirmation is the prompt passed to the Confirmer before a restore.
const RestoreConfirmation = "Restore the settings of this generation? Current inputs will be replaced."

// Option configures a Session.
type Option func(*Session)

// WithAlerter sets where rollback messages are surfaced.
func WithAlerter(a Alerter) Option {
	return func(s *Session) { s.alerter = a }
}

// WithBlobFetcher sets the fetcher used by Restore.
func WithBlobFetcher(f BlobFetcher) Option {
	return func(s *Session) { s.fetcher = f }
}

// WithClock replaces time.Now for temp ids and optimistic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.pollInterval = d }
}

// WithTicker replaces the poller's ticker factory.
func WithTicker(f TickerFactory) Option {
	return func(s *Session) { s.newTicker = f }
}

// WithRequester sets the requester identity sent with each submission.
func WithRequester(name string) Option {
	return func(s *Session) { s.requester = strings.TrimSpace(name) }
}

// WithSubmitTimeout bounds each asynchronous create call.
func WithSubmitTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.submitTimeout = d
		}
	}
}

// Session owns the generation state of the currently open shot: the
// optimistic store, the poller and every in-flight submission.
//
// Responses are tagged with the epoch they were issued in. Reset and Close
// bump the epoch so late responses for a previous shot are discarded.
type Session struct {
	backend       Backend
	fetcher       BlobFetcher
	alerter       Alerter
	now           func() time.Time
	requester     string
	submitTimeout time.Duration
	pollInterval  time.Duration
	newTicker     TickerFactory
	poller        *Poller

	mu       sync.Mutex
	shot     Shot
	store    Store
	epoch    uint64
	inFlight map[uint64]bool
	lastTemp int64
	tempSeq  int
	closed   bool
}

// NewSession creates a session with no shot open.
func NewSession(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend:       backend,
		now:           time.Now,
		submitTimeout: defaultSubmitTimeout,
		inFlight:      make(map[uint64]bool),
	}
	if f, ok := backend.(BlobFetcher); ok {
		s.fetcher = f
	}
	for _, opt := range opts {
		opt(s)
	}
	s.poller = NewPoller(s.pollTick, s.pollInterval, s.newTicker)
	return s
}

// Reset stops polling and rebinds the session to shot with an empty store.
func (s *Session) Reset(shot Shot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.poller.Stop()
	s.epoch++
	s.shot = shot
	s.shot.BackgroundURLs = slices.Clone(shot.BackgroundURLs)
	s.store.Reset(shot.ID)

	logrus.WithFields(logrus.Fields{
		"shot_id": shot.ID,
		"epoch":   s.epoch,
	}).Debug("workstation: session reset")
}

// Shot returns the open shot.
func (s *Session) Shot() Shot {
	s.mu.Lock()
	defer s.mu.Unlock()
	shot := s.shot
	shot.BackgroundURLs = slices.Clone(s.shot.BackgroundURLs)
	return shot
}

// Records returns the store contents, newest first.
func (s *Session) Records() []GenerationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Records()
}

// Load runs one fetch-and-merge and starts polling when work is pending.
func (s *Session) Load(ctx context.Context) error {
	pending, err := s.Tick(ctx)
	if err != nil {
		return err
	}
	if pending {
		s.StartPolling()
	}
	return nil
}

// Tick fetches the open shot's generations and merges them into the store.
// It reports whether the merged store still holds pending work, including
// local records the server has not listed yet. A failed fetch
// leaves the store untouched and reports false. A tick issued while the
// previous one is still in flight is skipped.
func (s *Session) Tick(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrSessionClosed
	}
	if s.shot.ID == "" {
		s.mu.Unlock()
		return false, ErrNoShot
	}
	epoch, shotID := s.epoch, s.shot.ID
	if s.inFlight[epoch] {
		pending := s.store.HasPending()
		s.mu.Unlock()
		logrus.WithField("shot_id", shotID).Debug("workstation: tick skipped, previous fetch in flight")
		return pending, nil
	}
	s.inFlight[epoch] = true
	s.mu.Unlock()

	records, err := s.backend.FetchGenerations(ctx, shotID)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, epoch)

	if epoch != s.epoch {
		logrus.WithField("shot_id", shotID).Debug("workstation: discarding stale fetch")
		return false, nil
	}
	if err != nil {
		logrus.WithError(err).WithField("shot_id", shotID).Warn("workstation: fetch generations failed")
		return false, fmt.Errorf("fetch generations: %w", err)
	}

	s.store.Apply(records)
	return s.store.HasPending(), nil
}

func (s *Session) pollTick(ctx context.Context, shotID string) (bool, error) {
	s.mu.Lock()
	current := s.shot.ID
	s.mu.Unlock()
	if current != shotID {
		return false, nil
	}
	return s.Tick(ctx)
}

// StartPolling begins polling the open shot. It is a no-op while polling.
func (s *Session) StartPolling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.shot.ID == "" {
		return false
	}
	return s.poller.Start(s.shot.ID)
}

// StopPolling stops the poller; it is idempotent.
func (s *Session) StopPolling() {
	s.poller.Stop()
}

// Polling reports whether the poller is active.
func (s *Session) Polling() bool {
	return s.poller.Polling()
}

// PollDone returns a channel closed when the current poll run exits, or nil when idle.
func (s *Session) PollDone() <-chan struct{} {
	return s.poller.Done()
}

// Close stops polling and discards every response still in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.epoch++
	s.poller.Stop()
}

// Submit validates draft, inserts an optimistic record and fires the create
// call in the background. Validation errors are returned before any state
// changes. The returned Submission resolves to an upgrade or a rollback.
func (s *Session) Submit(ctx context.Context, draft Draft) (*Submission, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.shot.ID == "" {
		s.mu.Unlock()
		return nil, ErrNoShot
	}

	payload, ref, err := Build(draft, BuildContext{Shot: s.shot, RequestedBy: s.requester})
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	now := s.now()
	rec := NewOptimisticRecord(s.nextTempID(now), payload, ref, now)
	s.store.Insert(rec)
	epoch := s.epoch
	s.mu.Unlock()

	sub := newSubmission(rec)
	logrus.WithFields(logrus.Fields{
		"shot_id": payload.ShotID,
		"temp_id": rec.ID,
		"mode":    payload.Mode,
	}).Info("workstation: submitting generation")

	go s.runSubmission(ctx, sub, payload, epoch)
	return sub, nil
}

func (s *Session) runSubmission(ctx context.Context, sub *Submission, payload Payload, epoch uint64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.submitTimeout)
	defer cancel()

	resp, err := s.backend.SubmitGeneration(ctx, payload)
	if err == nil && (!resp.Success || strings.TrimSpace(resp.GenerationID) == "") {
		err = errSubmissionRejected
	}

	result := SubmitResult{TempID: sub.TempID, Err: err}
	fields := logrus.Fields{"shot_id": payload.ShotID, "temp_id": sub.TempID}

	s.mu.Lock()
	result.Stale = epoch != s.epoch
	if err != nil {
		result.Outcome = OutcomeRolledBack
		result.Message = ErrorDetail(err)
		if !result.Stale {
			s.store.Remove(sub.TempID)
		}
	} else {
		result.Outcome = OutcomeUpgraded
		result.GenerationID = resp.GenerationID
		if !result.Stale {
			s.store.Upgrade(sub.TempID, resp.GenerationID)
		}
	}
	s.mu.Unlock()

	if err != nil {
		logrus.WithError(err).WithFields(fields).Warn("workstation: submission failed, rolled back")
		if s.alerter != nil {
			s.alerter.Alert(result.Message)
		}
	} else {
		fields["generation_id"] = resp.GenerationID
		logrus.WithFields(fields).Info("workstation: submission accepted")
		if !result.Stale {
			s.StartPolling()
		}
	}
	sub.finish(result)
}

// nextTempID returns temp-<unix millis>, suffixed when several submissions
// share a millisecond. Callers hold s.mu.
func (s *Session) nextTempID(now time.Time) string {
	millis := now.UnixMilli()
	if millis == s.lastTemp {
		s.tempSeq++
	} else {
		s.lastTemp = millis
		s.tempSeq = 0
	}
	for {
		id := fmt.Sprintf("temp-%d", millis)
		if s.tempSeq > 0 {
			id = fmt.Sprintf("temp-%d-%d", millis, s.tempSeq)
		}
		if _, exists := s.store.Find(id); !exists {
			return id
		}
		s.tempSeq++
	}
}

// GenerateBackgroundGrid runs the synchronous background-grid mode and
// returns the candidate image URLs. Nothing is inserted into the store.
func (s *Session) GenerateBackgroundGrid(ctx context.Context, in GridInputs) ([]string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	shotID := s.shot.ID
	s.mu.Unlock()
	if shotID == "" {
		return nil, ErrNoShot
	}

	payload, err := BuildGrid(in, shotID)
	if err != nil {
		return nil, err
	}
	urls, err := s.backend.FetchBackgroundGrid(ctx, payload)
	if err != nil {
		logrus.WithError(err).WithField("shot_id", shotID).Warn("workstation: background grid failed")
		return nil, fmt.Errorf("background grid: %w", err)
	}
	return urls, nil
}

// SaveBackgroundSelections persists the chosen grid outputs as shot
// backgrounds and makes them available as automatic-mode fallbacks.
func (s *Session) SaveBackgroundSelections(ctx context.Context, urls []string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	shotID, epoch := s.shot.ID, s.epoch
	s.mu.Unlock()
	if shotID == "" {
		return ErrNoShot
	}

	selected := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" && !slices.Contains(selected, u) {
			selected = append(selected, u)
		}
	}
	if len(selected) == 0 {
		return &ValidationError{Field: "urls", Message: "Please select at least one background."}
	}

	if err := s.backend.PersistBackgroundSelections(ctx, shotID, selected); err != nil {
		return fmt.Errorf("save backgrounds: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch == s.epoch {
		for _, u := range selected {
			if !slices.Contains(s.shot.BackgroundURLs, u) {
				s.shot.BackgroundURLs = append(s.shot.BackgroundURLs, u)
			}
		}
	}
	return nil
}

// Restore rebuilds the inputs of a stored generation after confirm agrees.
func (s *Session) Restore(ctx context.Context, id string, confirm Confirmer) (Restored, error) {
	s.mu.Lock()
	rec, ok := s.store.Find(id)
	s.mu.Unlock()
	if !ok {
		return Restored{}, ErrGenerationNotFound
	}
	if confirm == nil || !confirm.Confirm(RestoreConfirmation) {
		return Restored{}, ErrRestoreDeclined
	}
	if s.fetcher == nil {
		return Restored{}, ErrNoBlobFetcher
	}
	return NewRestorer(s.fetcher).Restore(ctx, rec)
}
