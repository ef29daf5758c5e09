package llm

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"text/template"
)

// Templates holds the prompt template and the three example blocks that are
// substituted into it.
type Templates struct {
	Prompt            string
	SuccessExamples   string
	FailedExamples    string
	ExceptionExamples string
}

// Digest returns a stable hash of all four templates. A change to any of
// them changes the digest.
func (t Templates) Digest() string {
	h := sha256.New()
	for _, part := range []string{t.Prompt, t.SuccessExamples, t.FailedExamples, t.ExceptionExamples} {
		fmt.Fprintf(h, "%d:%s;", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// promptData is the value the prompt template is executed against.
type promptData struct {
	LogContent        string
	SuccessExamples   string
	FailedExamples    string
	ExceptionExamples string
}

// PromptBuilder renders prompts from a parsed template.
type PromptBuilder struct {
	tmpl *template.Template
	data promptData
}

// NewPromptBuilder parses t.Prompt.
func NewPromptBuilder(t Templates) (*PromptBuilder, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(t.Prompt)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &PromptBuilder{
		tmpl: tmpl,
		data: promptData{
			SuccessExamples:   t.SuccessExamples,
			FailedExamples:    t.FailedExamples,
			ExceptionExamples: t.ExceptionExamples,
		},
	}, nil
}

// Build returns the prompt for one log excerpt.
func (b *PromptBuilder) Build(content string) (string, error) {
	data := b.data
	data.LogContent = content
	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
