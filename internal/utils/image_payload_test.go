package utils

import (
	"encoding/base64"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestDecodeMediaPayload(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngHeader)
	tests := []struct {
		name    string
		payload string
		wantExt string
		wantErr bool
	}{
		{"data url", "data:image/png;base64," + encoded, "png", false},
		{"bare base64 sniffed", encoded, "png", false},
		{"declared type when sniffing fails", "data:image/webp;base64," + base64.StdEncoding.EncodeToString([]byte("abc")), "webp", false},
		{"empty", "  ", "", true},
		{"broken base64", "data:image/png;base64,@@@", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, ext, err := DecodeMediaPayload(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ext != tt.wantExt || len(data) == 0 {
				t.Errorf("ext = %q, len = %d", ext, len(data))
			}
		})
	}
}

func TestExtensionFromMime(t *testing.T) {
	cases := map[string]string{
		"image/png":                 "png",
		"image/jpeg":                "jpg",
		"image/webp; charset=utf-8": "webp",
		"text/plain":                "",
		"":                          "",
	}
	for in, want := range cases {
		if got := ExtensionFromMime(in); got != want {
			t.Errorf("ExtensionFromMime(%q) = %q, want %q", in, got, want)
		}
	}
}
