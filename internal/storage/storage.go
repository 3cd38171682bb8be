package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studio/internal/config"

	"github.com/sirupsen/logrus"
)

const (
	// TypeLocal 表示本地文件系统存储。
	TypeLocal = "local"
	// TypeS3 表示 Amazon S3 或兼容的存储后端。
	TypeS3 = "s3"
	// TypeOSS 表示阿里云 OSS 存储。
	TypeOSS = "oss"
	// TypeCOS 表示腾讯云 COS 存储。
	TypeCOS = "cos"
	// TypeR2 表示 Cloudflare R2 存储。
	TypeR2 = "r2"
	// TypeMinIO 表示自建 MinIO 存储。
	TypeMinIO = "minio"
)

// 生成流程中使用的文件分类
const (
	CategoryReference  = "references"
	CategoryOutput     = "outputs"
	CategoryBackground = "backgrounds"
)

var errEmptyPayload = errors.New("empty payload")

// SaveOptions 控制存储后端如何持久化文件。
//
// Category 用于组织目录，Extension 为首选扩展名（不含前导点），为空时根据 ContentType 推断。
// BaseName 非空时作为文件名，配合 SkipIfExists 可以实现内容寻址的去重写入。
type SaveOptions struct {
	Category     string
	Extension    string
	BaseName     string
	ContentType  string
	SkipIfExists bool
}

// Storage 持久化二进制数据并返回存储 key（本地存储为相对路径）。
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
}

// LocalBaseDirProvider 由暴露可通过 HTTP 直接提供服务的本地目录的存储驱动实现。
type LocalBaseDirProvider interface {
	LocalBaseDir() string
}

// bucketBackend 是各对象存储 SDK 需要实现的最小操作集合。
type bucketBackend interface {
	exists(ctx context.Context, key string) (bool, error)
	put(ctx context.Context, key string, data []byte, contentType string) error
}

// objectStorage 统一处理对象存储的 key 生成、去重和日志，具体读写交给 bucketBackend。
type objectStorage struct {
	driver  string
	backend bucketBackend
	prefix  string
	now     func() time.Time
}

func newObjectStorage(driver string, backend bucketBackend, prefix string) *objectStorage {
	return &objectStorage{
		driver:  driver,
		backend: backend,
		prefix:  trimPrefix(prefix),
		now:     time.Now,
	}
}

func (s *objectStorage) Save(ctx context.Context, data []byte, opts SaveOptions) (string, error) {
	if len(data) == 0 {
		return "", errEmptyPayload
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := resolveExtension(opts)
	key := joinPrefix(s.prefix, buildObjectPath(opts.Category, opts.BaseName, ext, s.now()))
	logger := logrus.WithFields(logrus.Fields{"driver": s.driver, "key": key})

	if opts.SkipIfExists {
		exists, err := s.backend.exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("check object: %w", err)
		}
		if exists {
			logger.Debug("object already stored")
			return key, nil
		}
	}

	contentType := strings.TrimSpace(opts.ContentType)
	if contentType == "" {
		contentType = detectContentType(ext)
	}
	if err := s.backend.put(ctx, key, data, contentType); err != nil {
		logger.WithError(err).Error("put object failed")
		return "", fmt.Errorf("put object: %w", err)
	}
	logger.WithField("bytes", len(data)).Debug("object stored")
	return key, nil
}

// NewStorage 根据配置实例化存储后端。
func NewStorage(cfg config.Config) (Storage, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch typeName {
	case "", TypeLocal:
		return NewLocalStorage(cfg.StorageLocalDir)
	case TypeS3:
		return NewS3Storage(cfg)
	case TypeOSS:
		return NewOSSStorage(cfg)
	case TypeCOS:
		return NewCOSStorage(cfg)
	case TypeR2:
		return NewR2Storage(cfg)
	case TypeMinIO:
		return NewMinIOStorage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}
