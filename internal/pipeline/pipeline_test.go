package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/formscan/formscan/internal/config"
	"github.com/formscan/formscan/internal/enhance"
	"github.com/formscan/formscan/internal/prompts"
	"github.com/formscan/formscan/internal/reconcile"
	"github.com/formscan/formscan/internal/render"
	"github.com/formscan/formscan/internal/types"
)

type fakeForm struct {
	extraction *types.FormExtraction
	err        error
}

func (f fakeForm) Extract(types.RawDocument) (*types.FormExtraction, error) {
	return f.extraction, f.err
}

type fakeRenderer struct {
	pages []render.Page
	err   error
}

func (f fakeRenderer) Pages(context.Context, types.RawDocument) ([]render.Page, error) {
	return f.pages, f.err
}

type fakeVision struct {
	answers   []types.FieldAnswer
	equipment []prompts.EquipmentReading
	err       error
	seen      int
}

func (f *fakeVision) Extract(_ context.Context, renderings []types.PageRendering) ([]types.FieldAnswer, []prompts.EquipmentReading, error) {
	f.seen = len(renderings)
	return f.answers, f.equipment, f.err
}

func pagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testPipeline(form fakeForm, renderer fakeRenderer, visionReader VisionReader) *Pipeline {
	return New(Options{
		Form:     form,
		Renderer: renderer,
		Enhancer: enhance.New(config.EnhanceConfig{
			CheckboxThreshold: 180, RadioThreshold: 200,
			Contrast: 1.0, RadioContrast: 2.0, DilateRadius: 1, EdgeBlend: 0.3,
		}, nil),
		Vision: visionReader,
		Engine: reconcile.New(config.ReconcileConfig{
			AgreementBoost: 0.1, ConflictPenalty: 0.1,
			FormBase: 0.6, VisionBase: 0.4, ReviewThreshold: 0.7,
		}, nil),
		Variants: []types.RenderingVariant{types.VariantOriginal, types.VariantContrast},
	})
}

func question(id, text string, kind types.FieldKind, options ...string) types.FieldQuestion {
	return types.FieldQuestion{QuestionID: id, Page: 1, Text: text, Kind: kind, Options: options}
}

func TestRunBothSources(t *testing.T) {
	q := question("1", "Are you Red Seal certified?", types.KindRadio, "Yes", "No")
	form := fakeForm{extraction: &types.FormExtraction{
		HasFields: true,
		Answers: []types.FieldAnswer{{
			Question: q, Source: types.SourceInteractiveForm,
			Selected: []string{"Yes"}, Confidence: 1.0,
		}},
	}}
	visionReader := &fakeVision{answers: []types.FieldAnswer{{
		Question: q, Source: types.SourceVision,
		Selected: []string{"Yes"}, Confidence: 0.9,
	}}}

	p := testPipeline(form, fakeRenderer{pages: []render.Page{{Number: 1, PNG: pagePNG(t)}}}, visionReader)
	set, err := p.Run(context.Background(), types.RawDocument{
		AttachmentID: "att-1", Kind: types.MediaPaginatedDocument, Data: []byte("%PDF-"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if visionReader.seen != 2 {
		t.Errorf("vision saw %d renderings, want 2 (1 page x 2 variants)", visionReader.seen)
	}
	if len(set.Fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(set.Fields))
	}
	f := set.Fields[0]
	if f.Key != "credentials.red_seal" {
		t.Errorf("key = %q, want credentials.red_seal", f.Key)
	}
	if f.PrimarySource != types.SourceInteractiveForm {
		t.Errorf("primary source = %s", f.PrimarySource)
	}
	if set.Confidence != 1.0 {
		t.Errorf("run confidence = %v, want 1.0", set.Confidence)
	}
	if len(set.Buckets[types.BucketCredentials]) != 1 {
		t.Errorf("credentials bucket = %v", set.Buckets[types.BucketCredentials])
	}
	if set.RunID == "" {
		t.Error("missing run ID")
	}
	if len(set.ProcessingLog) == 0 {
		t.Error("missing processing log")
	}
}

func TestRunVisionFailureDegradesToFormOnly(t *testing.T) {
	q := question("1", "Are you a union member?", types.KindRadio, "Yes", "No")
	form := fakeForm{extraction: &types.FormExtraction{
		HasFields: true,
		Answers: []types.FieldAnswer{{
			Question: q, Source: types.SourceInteractiveForm,
			Selected: []string{"No"}, Confidence: 1.0,
		}},
	}}
	visionReader := &fakeVision{err: fmt.Errorf("provider unavailable")}

	p := testPipeline(form, fakeRenderer{pages: []render.Page{{Number: 1, PNG: pagePNG(t)}}}, visionReader)
	set, err := p.Run(context.Background(), types.RawDocument{
		AttachmentID: "att-2", Kind: types.MediaPaginatedDocument, Data: []byte("%PDF-"),
	})
	if err != nil {
		t.Fatalf("form data alone should carry the run: %v", err)
	}
	if len(set.Fields) != 1 {
		t.Fatalf("got %d fields", len(set.Fields))
	}
	found := false
	for _, line := range set.ProcessingLog {
		if containsAll(line, "vision extraction failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("degradation not logged: %v", set.ProcessingLog)
	}
}

func TestRunFailsWhenNothingProduced(t *testing.T) {
	form := fakeForm{extraction: &types.FormExtraction{HasFields: false}}
	visionReader := &fakeVision{err: fmt.Errorf("provider unavailable")}

	p := testPipeline(form, fakeRenderer{pages: []render.Page{{Number: 1, PNG: pagePNG(t)}}}, visionReader)
	_, err := p.Run(context.Background(), types.RawDocument{
		AttachmentID: "att-3", Kind: types.MediaPaginatedDocument, Data: []byte("%PDF-"),
	})
	if err == nil {
		t.Fatal("expected error when neither source produces answers")
	}
}

func TestRunEquipmentReadingsLandInEquipmentBucket(t *testing.T) {
	q := question("5", "Which brands have you operated?", types.KindCheckbox, "CAT", "Komatsu")
	visionReader := &fakeVision{
		answers: []types.FieldAnswer{{
			Question: q, Source: types.SourceVision,
			Selected: []string{"CAT"}, Confidence: 0.9,
		}},
		equipment: []prompts.EquipmentReading{{Brand: "CAT", Type: "Excavator", Years: "5", Confidence: 0.9}},
	}

	p := testPipeline(fakeForm{extraction: &types.FormExtraction{}}, fakeRenderer{pages: []render.Page{{Number: 1, PNG: pagePNG(t)}}}, visionReader)
	set, err := p.Run(context.Background(), types.RawDocument{
		AttachmentID: "att-4", Kind: types.MediaPaginatedDocument, Data: []byte("%PDF-"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	eq := set.Buckets[types.BucketEquipment]
	if len(eq) == 0 {
		t.Fatal("equipment bucket empty")
	}
	foundGrid := false
	for _, f := range eq {
		if f.FinalValue != nil && *f.FinalValue == "CAT Excavator (5 years)" {
			foundGrid = true
			if f.Confidence != 0.9 {
				t.Errorf("grid entry confidence = %.2f, want 0.9", f.Confidence)
			}
			if f.NeedsReview {
				t.Error("grid entry above threshold flagged for review")
			}
		}
	}
	if !foundGrid {
		t.Errorf("equipment grid entry missing: %+v", eq)
	}
}

func TestRunFlagsLowConfidenceEquipmentRows(t *testing.T) {
	q := question("5", "Which brands have you operated?", types.KindCheckbox, "CAT", "Komatsu")
	visionReader := &fakeVision{
		answers: []types.FieldAnswer{{
			Question: q, Source: types.SourceVision,
			Selected: []string{"CAT"}, Confidence: 0.9,
		}},
		equipment: []prompts.EquipmentReading{{Brand: "Komatsu", Type: "Dozer", Confidence: 0.4}},
	}

	p := testPipeline(fakeForm{extraction: &types.FormExtraction{}}, fakeRenderer{pages: []render.Page{{Number: 1, PNG: pagePNG(t)}}}, visionReader)
	set, err := p.Run(context.Background(), types.RawDocument{
		AttachmentID: "att-5", Kind: types.MediaPaginatedDocument, Data: []byte("%PDF-"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var grid *types.ReconciledField
	for i, f := range set.Fields {
		if f.Question.QuestionID == "equipment:komatsu_dozer" {
			grid = &set.Fields[i]
		}
	}
	if grid == nil {
		t.Fatal("equipment grid field missing")
	}
	if grid.Confidence != 0.4 {
		t.Errorf("grid confidence = %.2f, want 0.4", grid.Confidence)
	}
	if !grid.NeedsReview {
		t.Error("low-confidence grid row not flagged for review")
	}
	found := false
	for _, r := range set.ManualReview {
		if r.QuestionID == "equipment:komatsu_dozer" {
			found = true
		}
	}
	if !found {
		t.Errorf("grid row missing from manual review: %+v", set.ManualReview)
	}
}

// Re-running the same inputs must produce the same fields and scores;
// only run IDs and timestamps differ.
func TestRunRepeatable(t *testing.T) {
	q := question("1", "Willing to travel?", types.KindRadio, "Yes", "No")
	mk := func() *Pipeline {
		return testPipeline(
			fakeForm{extraction: &types.FormExtraction{
				HasFields: true,
				Answers: []types.FieldAnswer{{
					Question: q, Source: types.SourceInteractiveForm,
					Selected: []string{"Yes"}, Confidence: 1.0,
				}},
			}},
			fakeRenderer{pages: []render.Page{{Number: 1, PNG: pagePNG(t)}}},
			&fakeVision{answers: []types.FieldAnswer{{
				Question: q, Source: types.SourceVision,
				Selected: []string{"Yes"}, Confidence: 0.8,
			}}},
		)
	}
	doc := types.RawDocument{AttachmentID: "att-5", Kind: types.MediaPaginatedDocument, Data: []byte("%PDF-")}

	a, err := mk().Run(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	b, err := mk().Run(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}

	a.RunID, b.RunID = "", ""
	a.ProcessingLog, b.ProcessingLog = nil, nil
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	if !bytes.Equal(aj, bj) {
		t.Errorf("runs differ:\n%s\n%s", aj, bj)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !bytes.Contains([]byte(s), []byte(sub)) {
			return false
		}
	}
	return true
}
