package vision

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"testing"

	"github.com/formscan/formscan/internal/prompts"
	"github.com/formscan/formscan/internal/providers"
	"github.com/formscan/formscan/internal/types"
)

// fakeStrategy treats model output as a JSON PageReading directly so merge
// behavior can be tested without real prompt parsing.
type fakeStrategy struct{}

func (fakeStrategy) Name() string                         { return "fake/v1" }
func (fakeStrategy) SystemPrompt() string                 { return "read the page" }
func (fakeStrategy) UserPrompt(prompts.PageData) string   { return "page" }
func (fakeStrategy) Schema() json.RawMessage              { return json.RawMessage(`{}`) }
func (s fakeStrategy) Parse(content string) (*prompts.PageReading, error) {
	var r prompts.PageReading
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func newExtractor(t *testing.T, client providers.LLMClient) *Extractor {
	t.Helper()
	return New(Options{
		Client:   client,
		Strategy: fakeStrategy{},
		Workers:  2,
		Model:    "test-model",
		Logger:   slog.Default(),
	})
}

func reading(questions ...prompts.QuestionReading) string {
	b, _ := json.Marshal(prompts.PageReading{Questions: questions, Equipment: []prompts.EquipmentReading{}})
	return string(b)
}

func TestExtractSingleRendering(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = reading(prompts.QuestionReading{
		QuestionID:   "1",
		QuestionText: "Are you willing to travel?",
		QuestionType: "radio",
		Options: []prompts.OptionReading{
			{Option: "Yes", Selected: true, Confidence: 0.9},
			{Option: "No", Selected: false, Confidence: 0.85},
		},
		Selections: []string{"Yes"},
		Confidence: 0.9,
	})

	answers, _, err := newExtractor(t, mock).Extract(context.Background(), []types.PageRendering{
		{Page: 1, Variant: types.VariantOriginal, PNG: []byte("png")},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(answers))
	}
	a := answers[0]
	if a.Source != types.SourceVision {
		t.Errorf("source = %s", a.Source)
	}
	if !reflect.DeepEqual(a.Selected, []string{"Yes"}) {
		t.Errorf("selected = %v", a.Selected)
	}
	if a.Confidence != 0.9 {
		t.Errorf("confidence = %v", a.Confidence)
	}
	if !reflect.DeepEqual(a.Question.Options, []string{"Yes", "No"}) {
		t.Errorf("options = %v", a.Question.Options)
	}
}

func TestExtractDropsSelectionOutsideOptions(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = reading(prompts.QuestionReading{
		QuestionID:   "2",
		QuestionText: "Shift preference",
		QuestionType: "radio",
		Options: []prompts.OptionReading{
			{Option: "Days", Selected: false, Confidence: 0.8},
			{Option: "Nights", Selected: false, Confidence: 0.8},
		},
		Selections: []string{"Afternoons"},
		Confidence: 0.8,
	})

	answers, _, err := newExtractor(t, mock).Extract(context.Background(), []types.PageRendering{
		{Page: 1, Variant: types.VariantOriginal, PNG: []byte("png")},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(answers[0].Selected) != 0 {
		t.Errorf("out-of-list selection survived: %v", answers[0].Selected)
	}
}

func TestExtractMergesVariantsByMaxConfidence(t *testing.T) {
	// Two variants of the same page read the same question. The
	// binarized variant misses the faint mark; the contrast variant sees
	// it with higher per-option confidence and must win.
	faint := reading(prompts.QuestionReading{
		QuestionID:   "3",
		QuestionText: "Red Seal certified?",
		QuestionType: "checkbox",
		Options: []prompts.OptionReading{
			{Option: "Yes", Selected: false, Confidence: 0.4},
		},
		Selections: []string{},
		Confidence: 0.4,
	})
	clear := reading(prompts.QuestionReading{
		QuestionID:   "3",
		QuestionText: "Red Seal certified?",
		QuestionType: "checkbox",
		Options: []prompts.OptionReading{
			{Option: "Yes", Selected: true, Confidence: 0.95},
		},
		Selections: []string{"Yes"},
		Confidence: 0.95,
	})

	e := newExtractor(t, providers.NewMockClient())
	merged := e.merge(map[types.VariantKey]*prompts.PageReading{
		{Page: 1, Variant: types.VariantBinarizedCheckbox}: mustReading(t, faint),
		{Page: 1, Variant: types.VariantContrast}:          mustReading(t, clear),
	})

	if len(merged) != 1 {
		t.Fatalf("got %d answers, want 1", len(merged))
	}
	a := merged[0]
	if !reflect.DeepEqual(a.Selected, []string{"Yes"}) {
		t.Errorf("selected = %v, want [Yes]", a.Selected)
	}
	if a.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", a.Confidence)
	}
	if a.Variant != types.VariantContrast {
		t.Errorf("variant = %s, want contrast", a.Variant)
	}
}

func TestExtractToleratesFailedCalls(t *testing.T) {
	mock := providers.NewMockClient()
	mock.FailAfter = 1
	mock.ResponseText = reading(prompts.QuestionReading{
		QuestionID:   "1",
		QuestionText: "Union member?",
		QuestionType: "radio",
		Options: []prompts.OptionReading{
			{Option: "Yes", Selected: true, Confidence: 0.9},
			{Option: "No", Selected: false, Confidence: 0.9},
		},
		Selections: []string{"Yes"},
		Confidence: 0.9,
	})

	e := New(Options{
		Client:   mock,
		Strategy: fakeStrategy{},
		Workers:  1, // deterministic call order
		Model:    "test-model",
	})
	answers, _, err := e.Extract(context.Background(), []types.PageRendering{
		{Page: 1, Variant: types.VariantOriginal, PNG: []byte("a")},
		{Page: 1, Variant: types.VariantContrast, PNG: []byte("b")},
	})
	if err != nil {
		t.Fatalf("one failed call should not fail the run: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(answers))
	}
}

func TestExtractAllCallsFailed(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ShouldFail = true

	_, _, err := newExtractor(t, mock).Extract(context.Background(), []types.PageRendering{
		{Page: 1, Variant: types.VariantOriginal, PNG: []byte("a")},
	})
	if err == nil {
		t.Fatal("expected error when every rendering fails")
	}
}

func TestMergeEquipmentDeduplicates(t *testing.T) {
	r1 := &prompts.PageReading{Equipment: []prompts.EquipmentReading{
		{Brand: "CAT", Type: "Excavator", Years: "", Confidence: 0.5},
		{Brand: "Komatsu", Type: "Dozer", Years: "3", Confidence: 0.8},
	}}
	r2 := &prompts.PageReading{Equipment: []prompts.EquipmentReading{
		{Brand: "cat", Type: "excavator", Years: "5", Confidence: 0.9},
	}}

	got := mergeEquipment(map[types.VariantKey]*prompts.PageReading{
		{Page: 1, Variant: types.VariantOriginal}: r1,
		{Page: 1, Variant: types.VariantContrast}: r2,
	})
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	for _, eq := range got {
		if eq.Brand == "CAT" {
			if eq.Years != "5" {
				t.Errorf("years not backfilled: %+v", eq)
			}
			if eq.Confidence != 0.9 {
				t.Errorf("confidence = %.2f, want best-seen 0.9", eq.Confidence)
			}
		}
	}
}

func mustReading(t *testing.T, content string) *prompts.PageReading {
	t.Helper()
	r, err := fakeStrategy{}.Parse(content)
	if err != nil {
		t.Fatal(err)
	}
	return r
}
