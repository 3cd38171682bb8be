package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studio/internal/entity/dto"

	"github.com/pelletier/go-toml/v2"
)

// profile is the per-user workstation configuration.
type profile struct {
	ServerURL           string             `toml:"server_url"`
	Token               string             `toml:"token"`
	RequestedBy         string             `toml:"requested_by"`
	DefaultModel        string             `toml:"default_model"`
	DefaultAspectRatio  string             `toml:"default_aspect_ratio"`
	DefaultResolution   string             `toml:"default_resolution"`
	PollIntervalSeconds int                `toml:"poll_interval_seconds"`
	Characters          []dto.CharacterRef `toml:"characters"`
}

func defaultProfile() profile {
	return profile{
		ServerURL:           "http://localhost:8080",
		PollIntervalSeconds: 3,
	}
}

func defaultProfilePath() (string, error) {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "studio", "workstation.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "studio", "workstation.toml"), nil
}

// loadProfile reads path, or the default location when path is empty. A
// missing file yields the defaults.
func loadProfile(path string) (profile, string, bool, error) {
	cfg := defaultProfile()

	if strings.TrimSpace(path) == "" {
		var err error
		if path, err = defaultProfilePath(); err != nil {
			return cfg, "", false, err
		}
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, path, false, nil
	}
	if err != nil {
		return cfg, path, false, fmt.Errorf("open profile: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, path, true, fmt.Errorf("parse profile %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, path, true, nil
}

func (p *profile) normalize() {
	p.ServerURL = strings.TrimRight(strings.TrimSpace(p.ServerURL), "/")
	if p.ServerURL == "" {
		p.ServerURL = defaultProfile().ServerURL
	}
	p.Token = strings.TrimSpace(p.Token)
	p.RequestedBy = strings.TrimSpace(p.RequestedBy)
	if p.PollIntervalSeconds <= 0 {
		p.PollIntervalSeconds = 3
	}
}

func (p profile) pollInterval() time.Duration {
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

const sampleProfile = `# studio workstation profile
server_url = "http://localhost:8080"
# token issued by ` + "`studio-server token <name>`" + `
token = ""
requested_by = ""
default_model = ""
default_aspect_ratio = "16:9"
default_resolution = "2K"
poll_interval_seconds = 3

# characters searched for @Name mentions in automatic-mode prompts
# [[characters]]
# name = "Mia"
# url = "https://cdn.example.com/characters/mia.png"
`

func writeSampleProfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleProfile), 0o600); err != nil {
		return fmt.Errorf("write sample profile: %w", err)
	}
	return nil
}
