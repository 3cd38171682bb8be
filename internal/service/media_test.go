package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"studio/internal/storage"
)

func TestAppendStorageNotes(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		notes    []string
		expected string
	}{
		{
			name:     "空已有错误，空备注",
			existing: "",
			notes:    []string{},
			expected: "",
		},
		{
			name:     "空已有错误，有备注",
			existing: "",
			notes:    []string{"note1", "note2"},
			expected: "note1; note2",
		},
		{
			name:     "有已有错误，有备注",
			existing: "output image could not be stored",
			notes:    []string{"0: put object: denied"},
			expected: "output image could not be stored; 0: put object: denied",
		},
		{
			name:     "空白已有错误，有备注",
			existing: "   ",
			notes:    []string{"note1"},
			expected: "note1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := appendStorageNotes(tt.existing, tt.notes)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestComputeInputBaseName(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{name: "空数据", data: []byte{}, expected: "d41d8cd98f00b204e9800998ecf8427e"},
		{name: "Hello", data: []byte("Hello"), expected: "8b1a9953c4611296a827abf8c47804d7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := computeInputBaseName(tt.data); result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestBuildOutputBaseName(t *testing.T) {
	tests := []struct {
		name       string
		modelName  string
		wantPrefix string
	}{
		{name: "正常模型名", modelName: "doubao-seedream-4-0-250828", wantPrefix: "doubao-seedream-4-0-250828_"},
		{name: "空模型名", modelName: "", wantPrefix: "model_"},
		{name: "超长模型名", modelName: "this-is-a-very-long-model-name-that-exceeds-32-characters", wantPrefix: "this-is-a-very-long-model-name-t_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := buildOutputBaseName(tt.modelName, 0)
			if len(result) <= len(tt.wantPrefix) || result[:len(tt.wantPrefix)] != tt.wantPrefix {
				t.Errorf("expected prefix %q, got %q", tt.wantPrefix, result)
			}
		})
	}
}

func TestLoadLocal(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "references"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "references", "a.png"), []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := NewGenerationService(newMemRepo(), store, nil, Options{PublicBase: "/files"})

	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{name: "公开路径", ref: "/files/references/a.png"},
		{name: "目录穿越", ref: "/files/../../etc/passwd", wantErr: true},
		{name: "文件不存在", ref: "/files/references/missing.png", wantErr: true},
		{name: "只有前缀", ref: "/files/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := svc.loadLocal(context.Background(), tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", data)
				}
				return
			}
			if err != nil || string(data) != "img" {
				t.Fatalf("loadLocal: %q %v", data, err)
			}
		})
	}
}
