package workstation

import (
	"context"
	"errors"
	"sync"
	"time"

	"studio/internal/entity/dto"
)

type fakeBackend struct {
	mu sync.Mutex

	fetches    [][]GenerationRecord
	fetchErrs  []error
	fetchCalls int
	fetchGate  chan struct{}

	submitResp dto.CreateGenerationResponse
	submitErr  error
	submitGate chan struct{}
	submitted  []Payload

	grid      []string
	gridErr   error
	gridCalls int

	persisted map[string][]string
}

func (b *fakeBackend) SubmitGeneration(ctx context.Context, payload Payload) (dto.CreateGenerationResponse, error) {
	b.mu.Lock()
	b.submitted = append(b.submitted, payload)
	gate := b.submitGate
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return dto.CreateGenerationResponse{}, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submitResp, b.submitErr
}

func (b *fakeBackend) FetchGenerations(ctx context.Context, shotID string) ([]GenerationRecord, error) {
	b.mu.Lock()
	call := b.fetchCalls
	b.fetchCalls++
	gate := b.fetchGate
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if call < len(b.fetchErrs) && b.fetchErrs[call] != nil {
		return nil, b.fetchErrs[call]
	}
	if len(b.fetches) == 0 {
		return nil, nil
	}
	if call >= len(b.fetches) {
		call = len(b.fetches) - 1
	}
	return append([]GenerationRecord(nil), b.fetches[call]...), nil
}

func (b *fakeBackend) FetchBackgroundGrid(ctx context.Context, payload GridPayload) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gridCalls++
	return b.grid, b.gridErr
}

func (b *fakeBackend) PersistBackgroundSelections(ctx context.Context, shotID string, urls []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.persisted == nil {
		b.persisted = make(map[string][]string)
	}
	b.persisted[shotID] = append(b.persisted[shotID], urls...)
	return nil
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetchCalls
}

type detailError struct {
	detail string
}

func (e *detailError) Error() string       { return "request failed: " + e.detail }
func (e *detailError) ErrorDetail() string { return e.detail }

type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAlerter) Alert(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, message)
}

func (a *recordingAlerter) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

type fakeFetcher struct {
	mu    sync.Mutex
	files map[string]File
	opts  map[string]FetchOptions
}

func (f *fakeFetcher) FetchBlob(ctx context.Context, url string, opts FetchOptions) (File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opts == nil {
		f.opts = make(map[string]FetchOptions)
	}
	f.opts[url] = opts
	file, ok := f.files[url]
	if !ok {
		return File{}, errors.New("404 not found")
	}
	return file, nil
}

type fakeTicker struct {
	ch       chan time.Time
	mu       sync.Mutex
	stopped  bool
	interval time.Duration
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fire delivers one tick, failing if the loop does not receive it in time.
func (t *fakeTicker) fire(timeout time.Duration) bool {
	select {
	case t.ch <- time.Now():
		return true
	case <-time.After(timeout):
		return false
	}
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *tickerFactory) New(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time), interval: d}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) last() *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tickers) == 0 {
		return nil
	}
	return f.tickers[len(f.tickers)-1]
}

func (f *tickerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func rec(id string, status dto.GenerationStatus, offset time.Duration) GenerationRecord {
	return GenerationRecord{
		ID:        id,
		ShotID:    "shot-1",
		Status:    status,
		CreatedAt: baseTime.Add(offset),
	}
}

func ids(records []GenerationRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func waitFor(t interface{ Fatalf(string, ...any) }, cond func() bool, what string) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
