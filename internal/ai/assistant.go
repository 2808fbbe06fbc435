package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type AssistantConfig struct {
	Timeout       int
	MaxInputChars int
}

// Assistant answers questions about a dataset excerpt.
type Assistant struct {
	generator IGenerator
	cfg       AssistantConfig
}

func NewAssistant(generator IGenerator, cfg AssistantConfig) *Assistant {
	return &Assistant{generator: generator, cfg: cfg}
}

func (a *Assistant) Ask(ctx context.Context, datasetName, content, question string) (string, error) {
	if a == nil || a.generator == nil {
		return "", ErrUnavailable
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}
	content = truncateRunes(content, a.cfg.MaxInputChars)
	prompt := fmt.Sprintf(`You are a data assistant.
Answer the question using only the dataset excerpt below.
- Use the same language as the question.
- If the excerpt does not contain the answer, say so.
- Output ONLY the answer.

DATASET: %s

EXCERPT:
%s

QUESTION:
%s`, datasetName, content, question)
	return a.generateText(ctx, prompt)
}

func (a *Assistant) generateText(ctx context.Context, prompt string) (string, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(a.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (a *Assistant) MaxInputChars() int {
	return a.cfg.MaxInputChars
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
