package workstation

import (
	"context"
	"studio/internal/entity/dto"
)

// GenerationRecord is one generation attempt as the workstation sees it.
type GenerationRecord = dto.Generation

// Shot carries the shot-level fallback URLs used when building requests.
type Shot = dto.Shot

// Mode selects the request builder.
type Mode = dto.GenerationMode

// File is a binary input held in memory, either picked by the user or
// re-fetched from a URL during restore.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Empty reports whether f carries no bytes.
func (f *File) Empty() bool {
	return f == nil || len(f.Data) == 0
}

// FetchOptions tunes a blob fetch.
type FetchOptions struct {
	// NoReferrer suppresses the Referer header, including on redirects.
	NoReferrer bool
}

// Backend is the generation service the workstation talks to.
type Backend interface {
	SubmitGeneration(ctx context.Context, payload Payload) (dto.CreateGenerationResponse, error)
	FetchGenerations(ctx context.Context, shotID string) ([]GenerationRecord, error)
	FetchBackgroundGrid(ctx context.Context, payload GridPayload) ([]string, error)
	PersistBackgroundSelections(ctx context.Context, shotID string, urls []string) error
}

// BlobFetcher downloads a URL into a File.
type BlobFetcher interface {
	FetchBlob(ctx context.Context, url string, opts FetchOptions) (File, error)
}

// Alerter surfaces a blocking, user-visible message.
type Alerter interface {
	Alert(message string)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(message string) bool
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(message string)

// Alert implements Alerter.
func (f AlertFunc) Alert(message string) { f(message) }

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(message string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(message string) bool { return f(message) }
