// Package prompts manages the vision prompt strategies. Embedded .tmpl
// files in code are the source of truth; each strategy is versioned so a
// prompt revision ships as a new strategy name and old runs stay
// reproducible.
package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// PageData is the information a strategy interpolates into its user prompt.
type PageData struct {
	Page    int
	Variant string
}

// OptionReading is one option of a select question as read from the image.
type OptionReading struct {
	Option     string  `json:"option"`
	Selected   bool    `json:"selected"`
	Confidence float64 `json:"confidence"`
}

// QuestionReading is one question interpreted from a page image.
type QuestionReading struct {
	QuestionID   string          `json:"question_id"`
	QuestionText string          `json:"question_text"`
	QuestionType string          `json:"question_type"` // radio, checkbox, text, dropdown
	Options      []OptionReading `json:"all_available_options"`
	Selections   []string        `json:"actual_selections"`
	TextResponse string          `json:"text_response"`
	Confidence   float64         `json:"confidence"`
}

// EquipmentReading captures equipment experience blocks, which appear as
// free-form grids rather than discrete questions.
type EquipmentReading struct {
	Brand      string  `json:"brand"`
	Type       string  `json:"type"`
	Years      string  `json:"years"`
	Confidence float64 `json:"confidence"`
}

// PageReading is the full structured interpretation of one page image.
type PageReading struct {
	Questions []QuestionReading  `json:"questions"`
	Equipment []EquipmentReading `json:"equipment"`
}

// Strategy turns a page image request into prompts and parses the reply.
type Strategy interface {
	// Name is the versioned strategy identifier, e.g. "questionnaire/v2".
	Name() string
	SystemPrompt() string
	UserPrompt(data PageData) string
	// Schema is the expected response schema in the
	// {"name","strict","schema"} wrapper format.
	Schema() json.RawMessage
	// Parse extracts a PageReading from raw model output.
	Parse(content string) (*PageReading, error)
}

// EmbeddedPrompt describes one embedded prompt file for inspection.
type EmbeddedPrompt struct {
	Key         string
	Text        string
	Description string
	Variables   []string
	Hash        string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Strategy{}
)

// Register makes a strategy available by name. Called from strategy
// package init functions.
func Register(s Strategy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name()] = s
}

// Get returns the named strategy.
func Get(name string) (Strategy, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown prompt strategy %q (have %v)", name, names())
	}
	return s, nil
}

// Names lists registered strategy names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return names()
}

func names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
