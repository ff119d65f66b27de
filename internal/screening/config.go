package screening

import (
	"time"

	"github.com/joseph-ayodele/trial-screener/internal/common"
	"github.com/joseph-ayodele/trial-screener/internal/llm"
)

// Config holds the per-operation model options and the classify guard.
type Config struct {
	Guard         llm.Guard
	FailureMarker string
	Extract       llm.Options
	Organize      llm.Options
	Classify      llm.Options
}

// NewConfig derives the session settings from the application config.
// Organize and classify carry the sampling settings their prompts were tuned with.
func NewConfig(c *common.Config) Config {
	return Config{
		Guard: llm.Guard{
			CriteriaLimit: c.Limits.CriteriaChars,
			CaseLimit:     c.Limits.CaseChars,
		},
		FailureMarker: c.Screening.FailureMarker,
		Extract: llm.Options{
			Model:   c.LLM.Model,
			Timeout: c.LLM.Timeout,
		},
		Organize: llm.Options{
			Model:       c.LLM.Model,
			Temperature: llm.Temperature(0.3),
			MaxTokens:   2000,
			Timeout:     c.LLM.Timeout,
		},
		Classify: llm.Options{
			Model:       c.LLM.Model,
			Temperature: llm.Temperature(0.7),
			MaxTokens:   5000,
			Timeout:     c.LLM.ClassifyTimeout,
		},
	}
}

// DefaultConfig is NewConfig over the built-in defaults.
func DefaultConfig() Config {
	return NewConfig(&common.Config{
		LLM: common.LLMConfig{
			Model:           "deepseek-chat",
			Timeout:         60 * time.Second,
			ClassifyTimeout: 120 * time.Second,
		},
		Limits:    common.LimitsConfig{CriteriaChars: 10000, CaseChars: 20000},
		Screening: common.ScreeningConfig{FailureMarker: "分析失败"},
	})
}
