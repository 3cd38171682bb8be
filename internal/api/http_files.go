package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"studio/internal/entity/dto"
	"studio/internal/service"
)

// multipartForm 包装 multipart 表单的读取
type multipartForm struct {
	form *multipart.Form
}

func (f multipartForm) value(name string) string {
	if f.form == nil {
		return ""
	}
	values := f.form.Value[name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func (f multipartForm) values(name string) []string {
	if f.form == nil {
		return nil
	}
	return f.form.Value[name]
}

func (f multipartForm) files(name string) ([]service.Upload, error) {
	if f.form == nil {
		return nil, nil
	}
	headers := f.form.File[name]
	out := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := readUpload(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if len(up.Data) == 0 {
			continue
		}
		out = append(out, up)
	}
	return out, nil
}

// file 返回字段中的第一个非空文件，没有时返回 nil
func (f multipartForm) file(name string) (*service.Upload, error) {
	uploads, err := f.files(name)
	if err != nil || len(uploads) == 0 {
		return nil, err
	}
	return &uploads[0], nil
}

func readUpload(fh *multipart.FileHeader) (service.Upload, error) {
	file, err := fh.Open()
	if err != nil {
		return service.Upload{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return service.Upload{}, err
	}
	return service.Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// characterUploads 按顺序配对 character_files 与 character_names
func (f multipartForm) characterUploads() ([]service.CharacterUpload, error) {
	if f.form == nil {
		return nil, nil
	}
	headers := f.form.File[dto.FieldCharacterFiles]
	names := f.values(dto.FieldCharacterNames)
	out := make([]service.CharacterUpload, 0, len(headers))
	for i, fh := range headers {
		up, err := readUpload(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dto.FieldCharacterFiles, err)
		}
		if len(up.Data) == 0 {
			continue
		}
		name := ""
		if i < len(names) {
			name = strings.TrimSpace(names[i])
		}
		out = append(out, service.CharacterUpload{Name: name, File: up})
	}
	return out, nil
}

func (f multipartForm) characterURLs() ([]dto.CharacterRef, error) {
	raw := f.value(dto.FieldCharacterURLs)
	if raw == "" {
		return nil, nil
	}
	var refs []dto.CharacterRef
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return nil, fmt.Errorf("%s must be a JSON array of {name,url}", dto.FieldCharacterURLs)
	}
	return refs, nil
}
