package llm

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

const logSnippetLimit = 120

func providerLogger(ctx context.Context, providerID string, request ImageRequest) *logrus.Entry {
	fields := logrus.Fields{
		"provider":        providerID,
		"prompt_preview":  logSnippet(request.Prompt),
		"reference_count": len(request.Images),
	}
	if model := strings.TrimSpace(request.Model); model != "" {
		fields["model"] = model
	}
	if request.Count > 1 {
		fields["count"] = request.Count
	}

	entry := logrus.WithFields(fields)
	if ctx != nil {
		entry = entry.WithContext(ctx)
	}
	return entry
}

func logSnippet(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	runes := []rune(value)
	if len(runes) <= logSnippetLimit {
		return value
	}

	return string(runes[:logSnippetLimit]) + "..."
}
