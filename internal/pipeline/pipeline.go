// Package pipeline runs one document end to end: form-field extraction,
// page rendering, image enhancement, vision extraction, reconciliation,
// normalization, and bucket rollup. The pipeline holds no durable state;
// each Run is independent and repeatable.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formscan/formscan/internal/categorize"
	"github.com/formscan/formscan/internal/enhance"
	"github.com/formscan/formscan/internal/normalize"
	"github.com/formscan/formscan/internal/prompts"
	"github.com/formscan/formscan/internal/reconcile"
	"github.com/formscan/formscan/internal/render"
	"github.com/formscan/formscan/internal/types"
)

// PageRenderer renders a raw document to page images.
type PageRenderer interface {
	Pages(ctx context.Context, doc types.RawDocument) ([]render.Page, error)
}

// FormReader extracts interactive form answers from a raw document.
type FormReader interface {
	Extract(doc types.RawDocument) (*types.FormExtraction, error)
}

// VisionReader extracts answers from page renderings.
type VisionReader interface {
	Extract(ctx context.Context, renderings []types.PageRendering) ([]types.FieldAnswer, []prompts.EquipmentReading, error)
}

// Pipeline orchestrates one extraction run.
type Pipeline struct {
	form     FormReader
	renderer PageRenderer
	enhancer *enhance.Enhancer
	vision   VisionReader
	engine   *reconcile.Engine
	variants []types.RenderingVariant
	logger   *slog.Logger
}

// Options wires a pipeline's collaborators.
type Options struct {
	Form     FormReader
	Renderer PageRenderer
	Enhancer *enhance.Enhancer
	Vision   VisionReader
	Engine   *reconcile.Engine
	Variants []types.RenderingVariant
	Logger   *slog.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	variants := opts.Variants
	if len(variants) == 0 {
		variants = []types.RenderingVariant{
			types.VariantOriginal,
			types.VariantBinarizedCheckbox,
			types.VariantBinarizedRadio,
			types.VariantContrast,
		}
	}
	return &Pipeline{
		form:     opts.Form,
		renderer: opts.Renderer,
		enhancer: opts.Enhancer,
		vision:   opts.Vision,
		engine:   opts.Engine,
		variants: variants,
		logger:   logger,
	}
}

// Run processes one document. The run only fails outright when neither
// source produces anything; partial degradation is recorded in the
// processing log instead.
func (p *Pipeline) Run(ctx context.Context, doc types.RawDocument) (*types.CategorizedAnswerSet, error) {
	runID := uuid.New().String()
	start := time.Now()
	log := p.logger.With("run_id", runID, "attachment_id", doc.AttachmentID)

	var plog []string
	record := func(format string, args ...any) {
		plog = append(plog, fmt.Sprintf(format, args...))
	}
	record("run %s started for attachment %s (%s)", runID, doc.AttachmentID, doc.Kind)

	// Form layer first. Absence is normal for flat scans.
	formAnswers := p.readForm(doc, record, log)

	// Render and enhance every page.
	renderings, pageCount, err := p.renderAll(ctx, doc, record)
	if err != nil && len(formAnswers) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	// Vision extraction over all (page, variant) pairs.
	var visionAnswers []types.FieldAnswer
	var equipment []prompts.EquipmentReading
	if len(renderings) > 0 {
		visionAnswers, equipment, err = p.vision.Extract(ctx, renderings)
		if err != nil {
			if len(formAnswers) == 0 {
				return nil, fmt.Errorf("run %s: vision extraction: %w", runID, err)
			}
			record("vision extraction failed, continuing on form data alone: %v", err)
			log.Warn("vision extraction failed", "error", err)
		} else {
			record("vision read %d questions over %d renderings", len(visionAnswers), len(renderings))
		}
	}

	if len(formAnswers) == 0 && len(visionAnswers) == 0 {
		return nil, fmt.Errorf("run %s: no source produced any answers", runID)
	}

	res := p.engine.Reconcile(formAnswers, visionAnswers)
	record("reconciled %d fields, %d conflicts, %d flagged for review",
		len(res.Fields), res.Conflicts, len(res.Review))

	normalize.Apply(res.Fields)
	normalize.Enrich(res.Fields)
	eqFields, eqReview := p.equipmentFields(equipment)
	fields := append(res.Fields, eqFields...)
	res.Review = append(res.Review, eqReview...)

	set := &types.CategorizedAnswerSet{
		RunID:         runID,
		AttachmentID:  doc.AttachmentID,
		Fields:        fields,
		Buckets:       categorize.Buckets(fields),
		Confidence:    res.Confidence,
		ManualReview:  res.Review,
		ProcessingLog: plog,
	}
	set.ProcessingLog = append(set.ProcessingLog,
		fmt.Sprintf("run %s finished in %s (%d pages, confidence %.2f)",
			runID, time.Since(start).Round(time.Millisecond), pageCount, res.Confidence))

	log.Info("run complete",
		"fields", len(set.Fields),
		"conflicts", res.Conflicts,
		"review", len(res.Review),
		"confidence", res.Confidence,
		"duration", time.Since(start))
	return set, nil
}

// readForm pulls the interactive form layer, degrading to no answers.
func (p *Pipeline) readForm(doc types.RawDocument, record func(string, ...any), log *slog.Logger) []types.FieldAnswer {
	if doc.Kind != types.MediaPaginatedDocument {
		record("single page image, no form layer to read")
		return nil
	}
	extraction, err := p.form.Extract(doc)
	if err != nil {
		record("form layer unreadable: %v", err)
		log.Warn("form layer unreadable", "error", err)
		return nil
	}
	if !extraction.HasFields {
		record("document carries no interactive form fields")
		return nil
	}
	record("form layer produced %d answers", len(extraction.Answers))
	return extraction.Answers
}

// renderAll rasterizes pages and derives the configured variants, in
// page order.
func (p *Pipeline) renderAll(ctx context.Context, doc types.RawDocument, record func(string, ...any)) ([]types.PageRendering, int, error) {
	pages, err := p.renderer.Pages(ctx, doc)
	if err != nil {
		record("page rendering failed: %v", err)
		return nil, 0, fmt.Errorf("rendering pages: %w", err)
	}
	record("rendered %d pages", len(pages))

	var renderings []types.PageRendering
	for _, page := range pages {
		img, err := enhance.Decode(page.PNG)
		if err != nil {
			record("page %d undecodable, skipped: %v", page.Number, err)
			continue
		}
		variants, err := p.enhancer.Variants(img, page.Number, p.variants)
		if err != nil {
			record("page %d enhancement failed, skipped: %v", page.Number, err)
			continue
		}
		renderings = append(renderings, variants...)
	}
	if len(renderings) == 0 {
		return nil, len(pages), fmt.Errorf("no page produced a usable rendering")
	}
	return renderings, len(pages), nil
}

// equipmentFields converts equipment grid readings into reconciled
// fields so they survive bucket rollup alongside regular questions.
// Grid rows carry the confidence the vision reading reported; rows below
// the review threshold are flagged like any other low-confidence field.
func (p *Pipeline) equipmentFields(readings []prompts.EquipmentReading) ([]types.ReconciledField, []types.ReviewItem) {
	fields := make([]types.ReconciledField, 0, len(readings))
	var review []types.ReviewItem
	for _, eq := range readings {
		label := strings.TrimSpace(strings.Join([]string{eq.Brand, eq.Type}, " "))
		value := label
		if eq.Years != "" {
			value = fmt.Sprintf("%s (%s years)", label, eq.Years)
		}
		v := value
		conf := eq.Confidence
		if conf < 0 {
			conf = 0
		} else if conf > 1 {
			conf = 1
		}
		f := types.ReconciledField{
			Question: types.FieldQuestion{
				QuestionID: "equipment:" + slug(label),
				Text:       "Equipment experience: " + label,
				Kind:       types.KindText,
			},
			Key:           types.CanonicalKey("equipment.experience." + slug(label)),
			FinalValue:    &v,
			PrimarySource: types.SourceVision,
			Confidence:    conf,
		}
		if p.engine.BelowReviewThreshold(conf) {
			f.NeedsReview = true
			review = append(review, types.ReviewItem{
				QuestionID: f.Question.QuestionID,
				Text:       f.Question.Text,
				Reason:     fmt.Sprintf("equipment grid row read at confidence %.2f", conf),
			})
		}
		fields = append(fields, f)
	}
	return fields, review
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), "_")
}
