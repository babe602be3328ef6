package questionnaire

import (
	"strings"
	"testing"

	"github.com/formscan/formscan/internal/prompts"
)

func TestStrategyRegistered(t *testing.T) {
	s, err := prompts.Get(Version)
	if err != nil {
		t.Fatalf("Get(%q): %v", Version, err)
	}
	if s.Name() != Version {
		t.Errorf("Name() = %q, want %q", s.Name(), Version)
	}
}

func TestUserPromptInterpolation(t *testing.T) {
	got := Strategy{}.UserPrompt(prompts.PageData{Page: 3, Variant: "binarized-checkbox"})
	if !strings.Contains(got, "page 3") {
		t.Errorf("page number missing: %q", got)
	}
	if !strings.Contains(got, "binarized-checkbox") {
		t.Errorf("variant missing: %q", got)
	}
	if strings.Contains(got, "{{") {
		t.Errorf("unexpanded template: %q", got)
	}
}

func TestParseValidReading(t *testing.T) {
	content := "```json\n" + `{
		"questions": [{
			"question_id": "7",
			"question_text": "Are you Red Seal certified?",
			"question_type": "radio",
			"all_available_options": [
				{"option": "Yes", "selected": true, "confidence": 0.95},
				{"option": "No", "selected": false, "confidence": 0.9}
			],
			"actual_selections": ["Yes"],
			"text_response": "",
			"confidence": 0.92
		}],
		"equipment": []
	}` + "\n```"

	reading, err := Strategy{}.Parse(content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(reading.Questions) != 1 {
		t.Fatalf("got %d questions, want 1", len(reading.Questions))
	}
	q := reading.Questions[0]
	if q.QuestionID != "7" || q.QuestionType != "radio" {
		t.Errorf("question = %+v", q)
	}
	if len(q.Options) != 2 || !q.Options[0].Selected || q.Options[1].Selected {
		t.Errorf("options = %+v", q.Options)
	}
	if len(q.Selections) != 1 || q.Selections[0] != "Yes" {
		t.Errorf("selections = %v", q.Selections)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "the page was blank"},
		{"missing questions", `{"equipment": []}`},
		{"bad question type", `{"questions": [{"question_id": "1", "question_text": "x", "question_type": "slider", "all_available_options": [], "actual_selections": [], "text_response": "", "confidence": 1}], "equipment": []}`},
		{"equipment row without confidence", `{"questions": [], "equipment": [{"brand": "CAT", "type": "excavator", "years": "5"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := (Strategy{}).Parse(tt.content); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestPromptsInventory(t *testing.T) {
	for _, p := range Prompts() {
		if p.Text == "" {
			t.Errorf("%s: empty prompt", p.Key)
		}
		if p.Hash == "" {
			t.Errorf("%s: missing hash", p.Key)
		}
	}
}
