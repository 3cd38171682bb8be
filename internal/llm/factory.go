package llm

import (
	"fmt"
	"net/http"
	"strings"

	"studio/internal/config"
)

const (
	DriverVolcengine = "volcengine"
	DriverOpenAI     = "openai"
)

// NewGenerator instantiates the ImageGenerator selected by GENERATOR_DRIVER.
func NewGenerator(cfg config.Config) (ImageGenerator, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.GeneratorDriver))
	switch driver {
	case "", DriverVolcengine:
		return NewVolcengine(cfg.VolcengineAPIKey)
	case DriverOpenAI, "openrouter":
		return NewOpenAICompatible(cfg.OpenAICompatAPIKey, cfg.OpenAICompatBaseURL, &http.Client{})
	default:
		return nil, fmt.Errorf("unsupported generator driver: %s", cfg.GeneratorDriver)
	}
}
