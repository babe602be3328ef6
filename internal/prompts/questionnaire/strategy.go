// Package questionnaire is the prompt strategy for filled questionnaire
// forms: every question on a page with its full option list, the marked
// selections, and per-option read confidence.
package questionnaire

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/formscan/formscan/internal/prompts"
	"github.com/formscan/formscan/internal/providers"
)

// Version is the strategy name runs record for reproducibility.
const Version = "questionnaire/v2"

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

var userTemplate = template.Must(template.New("user").Parse(userPromptTmpl))

var schemaJSON = func() json.RawMessage {
	raw, err := json.Marshal(responseSchema)
	if err != nil {
		panic(fmt.Sprintf("marshaling questionnaire schema: %v", err))
	}
	return raw
}()

// Strategy implements prompts.Strategy for questionnaire pages.
type Strategy struct{}

func init() {
	prompts.Register(Strategy{})
}

// Name returns the versioned strategy identifier.
func (Strategy) Name() string { return Version }

// SystemPrompt returns the page extraction system prompt.
func (Strategy) SystemPrompt() string { return systemPrompt }

// UserPrompt builds the per-page user prompt. The template is embedded
// and parsed at init, so an execute failure is a programming error.
func (Strategy) UserPrompt(data prompts.PageData) string {
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		panic(fmt.Sprintf("executing questionnaire user prompt: %v", err))
	}
	return buf.String()
}

// Schema returns the wrapped response schema.
func (Strategy) Schema() json.RawMessage { return schemaJSON }

// Parse extracts and validates a PageReading from raw model output,
// tolerating code fences and surrounding prose.
func (Strategy) Parse(content string) (*prompts.PageReading, error) {
	raw, err := providers.ParseStructuredJSON(content)
	if err != nil {
		return nil, fmt.Errorf("extracting page JSON: %w", err)
	}
	if err := providers.ValidateStructuredJSON(schemaJSON, raw); err != nil {
		return nil, fmt.Errorf("validating page JSON: %w", err)
	}
	var reading prompts.PageReading
	if err := json.Unmarshal(raw, &reading); err != nil {
		return nil, fmt.Errorf("decoding page JSON: %w", err)
	}
	return &reading, nil
}

// Prompts lists the embedded prompt files for inspection tooling.
func Prompts() []prompts.EmbeddedPrompt {
	return []prompts.EmbeddedPrompt{
		{
			Key:         "strategies.questionnaire.system",
			Text:        systemPrompt,
			Description: "Questionnaire page extraction system prompt",
			Variables:   prompts.ExtractVariables(systemPrompt),
			Hash:        prompts.HashText(systemPrompt),
		},
		{
			Key:         "strategies.questionnaire.user",
			Text:        userPromptTmpl,
			Description: "Questionnaire page extraction user prompt template",
			Variables:   prompts.ExtractVariables(userPromptTmpl),
			Hash:        prompts.HashText(userPromptTmpl),
		},
	}
}

var _ prompts.Strategy = Strategy{}
