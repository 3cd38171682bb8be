package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studio/internal/storage"
	"studio/internal/utils"

	"golang.org/x/sync/errgroup"
)

const maxRemoteImageBytes = 64 << 20

// saveUpload 以内容哈希命名保存上传文件，重复上传不会产生新对象。返回公开 URL。
func (s *GenerationService) saveUpload(ctx context.Context, up *Upload) (string, error) {
	if up == nil || len(up.Data) == 0 {
		return "", nil
	}
	key, err := s.storage.Save(ctx, up.Data, storage.SaveOptions{
		Category:     storage.CategoryReference,
		Extension:    uploadExtension(up),
		BaseName:     computeInputBaseName(up.Data),
		ContentType:  up.ContentType,
		SkipIfExists: true,
	})
	if err != nil {
		return "", fmt.Errorf("save %s: %w", up.Name, err)
	}
	return s.publicURL(key), nil
}

func uploadExtension(up *Upload) string {
	if ext := utils.ExtensionFromMime(http.DetectContentType(up.Data)); ext != "" {
		return ext
	}
	if ext := utils.ExtensionFromMime(up.ContentType); ext != "" {
		return ext
	}
	return strings.TrimPrefix(filepath.Ext(up.Name), ".")
}

// saveOutputs 并发落盘生成结果，返回与 payloads 等长的 key 列表，失败项为空串。
func (s *GenerationService) saveOutputs(parentCtx context.Context, category, modelName string, payloads []string) ([]string, []string) {
	ctx, cancel := context.WithTimeout(parentCtx, 5*time.Minute)
	defer cancel()

	keys := make([]string, len(payloads))
	issues := make([]string, len(payloads))

	var g errgroup.Group
	g.SetLimit(4)
	for idx, payload := range payloads {
		g.Go(func() error {
			data, ext, err := s.resolveMediaPayload(ctx, payload)
			if err != nil {
				issues[idx] = fmt.Sprintf("%d: %v", idx, err)
				return nil
			}
			key, err := s.storage.Save(ctx, data, storage.SaveOptions{
				Category:  category,
				Extension: ext,
				BaseName:  buildOutputBaseName(modelName, idx),
			})
			if err != nil {
				issues[idx] = fmt.Sprintf("%d: %v", idx, err)
				return nil
			}
			keys[idx] = key
			return nil
		})
	}
	_ = g.Wait()

	var notes []string
	for _, issue := range issues {
		if issue != "" {
			notes = append(notes, issue)
		}
	}
	return keys, notes
}

// resolveMediaPayload 解析媒体数据（URL 或 base64）
func (s *GenerationService) resolveMediaPayload(ctx context.Context, payload string) ([]byte, string, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, "", errors.New("empty payload")
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		reqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, trimmed, nil)
		if err != nil {
			return nil, "", fmt.Errorf("create request: %w", err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("download image: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("download image http %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageBytes))
		if err != nil {
			return nil, "", fmt.Errorf("read image body: %w", err)
		}

		ext := utils.ExtensionFromMime(resp.Header.Get("Content-Type"))
		if ext == "" {
			ext = utils.ExtensionFromMime(http.DetectContentType(data))
		}
		if ext == "" {
			ext = "bin"
		}
		return data, ext, nil
	}

	return utils.DecodeMediaPayload(trimmed)
}

// loadLocal 读取本地存储中的文件，供模型服务无法访问的相对 URL 使用。
func (s *GenerationService) loadLocal(_ context.Context, ref string) ([]byte, error) {
	provider, ok := s.storage.(storage.LocalBaseDirProvider)
	if !ok {
		return nil, fmt.Errorf("reference %q is not reachable", ref)
	}
	rel := strings.TrimPrefix(ref, s.publicBase)
	rel = strings.TrimLeft(rel, "/")
	if rel == "" {
		return nil, fmt.Errorf("reference %q is not a stored file", ref)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("reference %q escapes storage dir", ref)
	}
	return os.ReadFile(filepath.Join(provider.LocalBaseDir(), clean))
}

// appendStorageNotes 合并存储问题说明
func appendStorageNotes(existing string, notes []string) string {
	if len(notes) == 0 {
		return existing
	}
	combined := strings.Join(notes, "; ")
	if strings.TrimSpace(existing) == "" {
		return combined
	}
	return existing + "; " + combined
}

// computeInputBaseName 计算输入文件的基础名称（使用 MD5 哈希）
func computeInputBaseName(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// buildOutputBaseName 构建输出文件的基础名称
func buildOutputBaseName(modelName string, idx int) string {
	token := storage.SanitizeToken(modelName)
	if token == "" {
		token = "model"
	}
	if len(token) > 32 {
		token = token[:32]
	}
	suffix := time.Now().UTC().UnixNano()
	return fmt.Sprintf("%s_%d_%d", token, suffix, idx)
}
