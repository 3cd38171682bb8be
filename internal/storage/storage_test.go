package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"studio/internal/config"
)

type memoryBucket struct {
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       error
	puts         int
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (b *memoryBucket) exists(_ context.Context, key string) (bool, error) {
	_, ok := b.objects[key]
	return ok, nil
}

func (b *memoryBucket) put(_ context.Context, key string, data []byte, contentType string) error {
	if b.putErr != nil {
		return b.putErr
	}
	b.puts++
	b.objects[key] = data
	b.contentTypes[key] = contentType
	return nil
}

var fixedNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func TestBuildObjectPath(t *testing.T) {
	tests := []struct {
		name     string
		category string
		base     string
		ext      string
		want     string
	}{
		{"完整参数", "references", "Shot 12", "PNG", "references/2025/05/01/shot-12.png"},
		{"空分类", "", "a", "jpg", "misc/2025/05/01/a.jpg"},
		{"jpeg 归一", "outputs", "b", ".jpeg", "outputs/2025/05/01/b.jpg"},
		{"未知扩展名", "outputs", "c", "", "outputs/2025/05/01/c.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildObjectPath(tt.category, tt.base, tt.ext, fixedNow); got != tt.want {
				t.Errorf("buildObjectPath() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("无文件名时使用时间戳", func(t *testing.T) {
		got := buildObjectPath("x", "", "png", fixedNow)
		if !strings.HasPrefix(got, "x/2025/05/01/") || !strings.HasSuffix(got, ".png") {
			t.Errorf("unexpected path %q", got)
		}
	})
}

func TestJoinPrefix(t *testing.T) {
	if got := joinPrefix(" /studio/ ", "/a/b.png"); got != "studio/a/b.png" {
		t.Errorf("joinPrefix = %q", got)
	}
	if got := joinPrefix("", "/a.png"); got != "a.png" {
		t.Errorf("joinPrefix = %q", got)
	}
}

func TestObjectStorageSave(t *testing.T) {
	ctx := context.Background()

	t.Run("按 ContentType 推断扩展名", func(t *testing.T) {
		bucket := newMemoryBucket()
		s := newObjectStorage("memory", bucket, "/studio/")
		s.now = func() time.Time { return fixedNow }

		key, err := s.Save(ctx, []byte("img"), SaveOptions{Category: CategoryReference, BaseName: "abc", ContentType: "image/webp"})
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if key != "studio/references/2025/05/01/abc.webp" {
			t.Errorf("key = %q", key)
		}
		if bucket.contentTypes[key] != "image/webp" {
			t.Errorf("content type = %q", bucket.contentTypes[key])
		}
	})

	t.Run("已存在时跳过写入", func(t *testing.T) {
		bucket := newMemoryBucket()
		s := newObjectStorage("memory", bucket, "")
		s.now = func() time.Time { return fixedNow }
		opts := SaveOptions{Category: CategoryOutput, BaseName: "same", Extension: "png", SkipIfExists: true}

		first, err := s.Save(ctx, []byte("1"), opts)
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		second, err := s.Save(ctx, []byte("2"), opts)
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if first != second || bucket.puts != 1 || string(bucket.objects[first]) != "1" {
			t.Errorf("expected one write, got puts=%d first=%q second=%q", bucket.puts, first, second)
		}
	})

	t.Run("空内容", func(t *testing.T) {
		s := newObjectStorage("memory", newMemoryBucket(), "")
		if _, err := s.Save(ctx, nil, SaveOptions{}); !errors.Is(err, errEmptyPayload) {
			t.Errorf("expected errEmptyPayload, got %v", err)
		}
	})

	t.Run("写入失败", func(t *testing.T) {
		bucket := newMemoryBucket()
		bucket.putErr = errors.New("denied")
		s := newObjectStorage("memory", bucket, "")
		if _, err := s.Save(ctx, []byte("x"), SaveOptions{}); err == nil || !strings.Contains(err.Error(), "denied") {
			t.Errorf("expected wrapped put error, got %v", err)
		}
	})

	t.Run("已取消的上下文", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		s := newObjectStorage("memory", newMemoryBucket(), "")
		if _, err := s.Save(cctx, []byte("x"), SaveOptions{}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorageSave(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	s.now = func() time.Time { return fixedNow }

	key, err := s.Save(context.Background(), []byte("png-bytes"), SaveOptions{Category: CategoryBackground, BaseName: "grid-1", Extension: "png"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if key != "backgrounds/2025/05/01/grid-1.png" {
		t.Errorf("key = %q", key)
	}
	raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil || string(raw) != "png-bytes" {
		t.Fatalf("file not written: %v %q", err, raw)
	}

	again, err := s.Save(context.Background(), []byte("other"), SaveOptions{Category: CategoryBackground, BaseName: "grid-1", Extension: "png", SkipIfExists: true})
	if err != nil || again != key {
		t.Fatalf("SkipIfExists: key=%q err=%v", again, err)
	}
	raw, _ = os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if string(raw) != "png-bytes" {
		t.Errorf("file overwritten: %q", raw)
	}
}

func TestNewStorage(t *testing.T) {
	t.Run("默认本地存储", func(t *testing.T) {
		s, err := NewStorage(config.Config{StorageLocalDir: t.TempDir()})
		if err != nil {
			t.Fatalf("NewStorage: %v", err)
		}
		if _, ok := s.(LocalBaseDirProvider); !ok {
			t.Errorf("expected local storage, got %T", s)
		}
	})

	t.Run("未知类型", func(t *testing.T) {
		if _, err := NewStorage(config.Config{StorageType: "ftp"}); err == nil {
			t.Fatal("expected error")
		}
	})

	missing := []struct {
		name string
		cfg  config.Config
	}{
		{"S3 缺少 bucket", config.Config{StorageType: TypeS3}},
		{"S3 缺少 region", config.Config{StorageType: TypeS3, StorageS3Bucket: "b"}},
		{"OSS 缺少 endpoint", config.Config{StorageType: TypeOSS}},
		{"COS 缺少 URL", config.Config{StorageType: TypeCOS}},
		{"R2 缺少 account", config.Config{StorageType: TypeR2, StorageR2Bucket: "b"}},
		{"MinIO 缺少凭证", config.Config{StorageType: TypeMinIO, StorageMinIOEndpoint: "http://minio:9000", StorageMinIOBucket: "b"}},
	}
	for _, tt := range missing {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStorage(tt.cfg); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}

	t.Run("MinIO 配置完整", func(t *testing.T) {
		s, err := NewStorage(config.Config{
			StorageType:           TypeMinIO,
			StorageMinIOEndpoint:  "http://localhost:9000",
			StorageMinIOBucket:    "studio",
			StorageMinIOAccessKey: "ak",
			StorageMinIOSecretKey: "sk",
		})
		if err != nil {
			t.Fatalf("NewStorage: %v", err)
		}
		if _, ok := s.(*objectStorage); !ok {
			t.Errorf("expected object storage, got %T", s)
		}
	})
}

func TestR2ClientOptions(t *testing.T) {
	opts, err := r2ClientOptions(config.Config{StorageR2AccountID: " acc123 "})
	if err != nil {
		t.Fatalf("r2ClientOptions: %v", err)
	}
	if opts.Endpoint != "https://acc123.r2.cloudflarestorage.com" || opts.Region != "auto" || !opts.ForcePathStyle {
		t.Errorf("derived options = %+v", opts)
	}

	opts, err = r2ClientOptions(config.Config{StorageR2Endpoint: "https://r2.example.com", StorageR2Region: "wnam"})
	if err != nil {
		t.Fatalf("r2ClientOptions: %v", err)
	}
	if opts.Endpoint != "https://r2.example.com" || opts.Region != "wnam" {
		t.Errorf("explicit options = %+v", opts)
	}
}
