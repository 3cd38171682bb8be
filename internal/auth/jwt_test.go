package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewManagerAndTokenLifecycle(t *testing.T) {
	mgr, err := NewManager("test-secret", "studio", time.Minute*30)
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}

	token, expiresAt, err := mgr.GenerateToken("  ana  ")
	if err != nil {
		t.Fatalf("unexpected error generating token: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if expiresAt.Before(time.Now()) {
		t.Fatal("expected future expiry time")
	}

	claims, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatalf("unexpected error parsing token: %v", err)
	}
	if claims.Name != "ana" || claims.Subject != "ana" {
		t.Fatalf("expected name ana, got %q/%q", claims.Name, claims.Subject)
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("   ", "", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestGenerateTokenRequiresName(t *testing.T) {
	mgr, _ := NewManager("secret", "", time.Hour)
	if _, _, err := mgr.GenerateToken(" "); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestParseTokenRejects(t *testing.T) {
	mgr, _ := NewManager("secret", "studio", time.Hour)
	other, _ := NewManager("other-secret", "studio", time.Hour)
	foreign, _ := NewManager("secret", "someone-else", time.Hour)

	expired, _ := NewManager("secret", "studio", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tokenFor := func(m *Manager) string {
		token, _, err := m.GenerateToken("ana")
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		return token
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "签名不匹配", token: tokenFor(other), wantErr: jwt.ErrTokenSignatureInvalid},
		{name: "签发方不匹配", token: tokenFor(foreign), wantErr: jwt.ErrTokenInvalidIssuer},
		{name: "已过期", token: tokenFor(expired), wantErr: jwt.ErrTokenExpired},
		{name: "格式错误", token: "not-a-jwt", wantErr: jwt.ErrTokenMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.ParseToken(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
