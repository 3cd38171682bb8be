package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"studio/internal/studioclient"
	"studio/internal/workstation"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag  *string
	serverFlag  *string
	tokenFlag   *string
	shotFlag    *string
	verboseFlag *bool

	profileOnce sync.Once
	profile     profile
	profilePath string
	profileErr  error
}

func newCommandContext(configFlag, serverFlag, tokenFlag, shotFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		serverFlag:  serverFlag,
		tokenFlag:   tokenFlag,
		shotFlag:    shotFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) setupLogging(w io.Writer) {
	logrus.SetOutput(w)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: !isTerminal(w),
	})
	level := logrus.WarnLevel
	if c.verboseFlag != nil && *c.verboseFlag {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
}

// ensureProfile loads the profile once and applies flag overrides.
func (c *commandContext) ensureProfile() (profile, error) {
	c.profileOnce.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := loadProfile(path)
		if err != nil {
			c.profileErr = err
			return
		}
		if c.serverFlag != nil && strings.TrimSpace(*c.serverFlag) != "" {
			cfg.ServerURL = strings.TrimRight(strings.TrimSpace(*c.serverFlag), "/")
		}
		if c.tokenFlag != nil && strings.TrimSpace(*c.tokenFlag) != "" {
			cfg.Token = strings.TrimSpace(*c.tokenFlag)
		}
		c.profile = cfg
		c.profilePath = resolved
	})
	return c.profile, c.profileErr
}

func (c *commandContext) shotID() (string, error) {
	if c.shotFlag == nil || strings.TrimSpace(*c.shotFlag) == "" {
		return "", errors.New("--shot is required")
	}
	return strings.TrimSpace(*c.shotFlag), nil
}

func (c *commandContext) client() (*studioclient.Client, error) {
	cfg, err := c.ensureProfile()
	if err != nil {
		return nil, err
	}
	return studioclient.New(cfg.ServerURL, studioclient.WithToken(cfg.Token))
}

// openSession creates a session bound to the --shot shot. Rollback alerts
// are written to alerts.
func (c *commandContext) openSession(ctx context.Context, alerts io.Writer) (*workstation.Session, error) {
	shotID, err := c.shotID()
	if err != nil {
		return nil, err
	}
	cfg, err := c.ensureProfile()
	if err != nil {
		return nil, err
	}
	client, err := c.client()
	if err != nil {
		return nil, err
	}

	shot, err := client.FetchShot(ctx, shotID)
	if err != nil {
		return nil, fmt.Errorf("load shot %s: %w", shotID, err)
	}

	session := workstation.NewSession(client,
		workstation.WithRequester(cfg.RequestedBy),
		workstation.WithPollInterval(cfg.pollInterval()),
		workstation.WithAlerter(workstation.AlertFunc(func(message string) {
			fmt.Fprintln(alerts, "Generation failed:", message)
		})),
	)
	session.Reset(shot)
	return session, nil
}

// readInputFile loads a local file as a workstation input.
func readInputFile(path string) (*workstation.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &workstation.File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// publicFilesPrefix matches the backend's default STORAGE_PUBLIC_BASE_URL.
const publicFilesPrefix = "/files/"

// isRemoteRef reports whether value names an uploaded image rather than a
// local file. A path that exists on disk is always local.
func isRemoteRef(value string) bool {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return true
	}
	if _, err := os.Stat(value); err == nil {
		return false
	}
	return strings.HasPrefix(value, publicFilesPrefix)
}

// splitNamed parses "Name=value" into its parts.
func splitNamed(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, "=")
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if !ok || value == "" {
		return "", "", fmt.Errorf("expected Name=path-or-url, got %q", raw)
	}
	return name, value, nil
}

func shouldSkipProfile(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipProfileLoad"] == "true" {
			return true
		}
	}
	return false
}
