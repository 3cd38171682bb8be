package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"studio/internal/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

type ossBucket struct {
	bucket *oss.Bucket
}

func (b *ossBucket) exists(_ context.Context, key string) (bool, error) {
	return b.bucket.IsObjectExist(key)
}

func (b *ossBucket) put(ctx context.Context, key string, data []byte, contentType string) error {
	return b.bucket.PutObject(key, bytes.NewReader(data), oss.WithContext(ctx), oss.ContentType(contentType))
}

// NewOSSStorage 创建阿里云 OSS 存储。
func NewOSSStorage(cfg config.Config) (Storage, error) {
	endpoint := strings.TrimSpace(cfg.StorageOSSEndpoint)
	if endpoint == "" {
		return nil, errors.New("storage: missing OSS endpoint")
	}
	bucketName := strings.TrimSpace(cfg.StorageOSSBucket)
	if bucketName == "" {
		return nil, errors.New("storage: missing OSS bucket")
	}
	accessKey := strings.TrimSpace(cfg.StorageOSSAccessKeyID)
	secretKey := strings.TrimSpace(cfg.StorageOSSAccessKeySecret)
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("storage: missing OSS credentials")
	}

	client, err := oss.New(endpoint, accessKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("storage: create OSS client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("storage: open OSS bucket: %w", err)
	}
	return newObjectStorage(TypeOSS, &ossBucket{bucket: bucket}, cfg.StorageOSSPrefix), nil
}
