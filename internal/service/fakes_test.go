package service

import (
	"context"
	"encoding/base64"
	"errors"
	"slices"
	"sync"
	"time"

	"studio/internal/entity"
	"studio/internal/llm"

	"gorm.io/gorm"
)

// memRepo 是 model.Repository 的内存实现
type memRepo struct {
	mu          sync.Mutex
	shots       map[string]*entity.DbShot
	generations map[string]*entity.DbGeneration
	clock       time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		shots:       map[string]*entity.DbShot{},
		generations: map[string]*entity.DbGeneration{},
		clock:       time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *memRepo) GetShot(_ context.Context, id string) (*entity.DbShot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shot, ok := r.shots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *shot
	cp.BackgroundURLs = entity.URLList{}.Merge(shot.BackgroundURLs...)
	return &cp, nil
}

func (r *memRepo) EnsureShot(ctx context.Context, id string) (*entity.DbShot, error) {
	r.mu.Lock()
	if _, ok := r.shots[id]; !ok {
		r.shots[id] = &entity.DbShot{ID: id, BackgroundURLs: entity.URLList{}}
	}
	r.mu.Unlock()
	return r.GetShot(ctx, id)
}

func (r *memRepo) UpdateShot(ctx context.Context, id string, updates entity.ShotUpdates) (*entity.DbShot, error) {
	if _, err := r.EnsureShot(ctx, id); err != nil {
		return nil, err
	}
	r.mu.Lock()
	if updates.StoryboardURL != nil {
		r.shots[id].StoryboardURL = *updates.StoryboardURL
	}
	if updates.StyleURL != nil {
		r.shots[id].StyleURL = *updates.StyleURL
	}
	r.mu.Unlock()
	return r.GetShot(ctx, id)
}

func (r *memRepo) AppendShotBackgrounds(ctx context.Context, id string, urls []string) (*entity.DbShot, error) {
	if _, err := r.EnsureShot(ctx, id); err != nil {
		return nil, err
	}
	r.mu.Lock()
	shot := r.shots[id]
	shot.BackgroundURLs = shot.BackgroundURLs.Merge(urls...)
	r.mu.Unlock()
	return r.GetShot(ctx, id)
}

func (r *memRepo) CreateGeneration(_ context.Context, g *entity.DbGeneration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g.CreatedAt.IsZero() {
		r.clock = r.clock.Add(time.Second)
		g.CreatedAt = r.clock
	}
	cp := *g
	r.generations[g.ID] = &cp
	return nil
}

func (r *memRepo) UpdateGeneration(_ context.Context, id string, updates entity.GenerationUpdates) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.generations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if updates.IsEmpty() {
		return errors.New("no updates provided")
	}
	if updates.Status != nil {
		g.Status = string(*updates.Status)
	}
	if updates.ImagePath != nil {
		g.ImagePath = *updates.ImagePath
	}
	if updates.ErrorMessage != nil {
		g.ErrorMessage = *updates.ErrorMessage
	}
	return nil
}

func (r *memRepo) GetGeneration(_ context.Context, id string) (*entity.DbGeneration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.generations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *memRepo) ListGenerations(_ context.Context, shotID string) ([]entity.DbGeneration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.DbGeneration
	for _, g := range r.generations {
		if g.ShotID == shotID {
			out = append(out, *g)
		}
	}
	slices.SortFunc(out, func(a, b entity.DbGeneration) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r *memRepo) ListGenerationsByStatus(_ context.Context, status string) ([]entity.DbGeneration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.DbGeneration
	for _, g := range r.generations {
		if g.Status == status {
			out = append(out, *g)
		}
	}
	return out, nil
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake")

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

// fakeGenerator 记录收到的请求并返回预设结果
type fakeGenerator struct {
	mu       sync.Mutex
	requests []llm.ImageRequest
	err      error
	empty    bool // 模拟服务商成功返回但没有图片
}

func (g *fakeGenerator) ProviderID() string { return "fake" }

func (g *fakeGenerator) GenerateImages(_ context.Context, req llm.ImageRequest) (*llm.ImageResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	if g.empty {
		return &llm.ImageResult{}, nil
	}
	n := req.Count
	if n <= 0 {
		n = 1
	}
	images := make([]string, n)
	for i := range images {
		images[i] = pngDataURL()
	}
	return &llm.ImageResult{Images: images}, nil
}

func (g *fakeGenerator) lastRequest() llm.ImageRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return llm.ImageRequest{}
	}
	return g.requests[len(g.requests)-1]
}
