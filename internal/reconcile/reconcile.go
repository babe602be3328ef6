// Package reconcile merges interactive-form answers with vision answers
// into one record per question. The form layer is authoritative where it
// disagrees with the image; the image fills in everything the form layer
// does not cover. Confidence arithmetic follows fixed weights so the same
// inputs always score the same.
package reconcile

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/formscan/formscan/internal/config"
	"github.com/formscan/formscan/internal/types"
)

const manualVerificationReason = "REQUIRES MANUAL VERIFICATION"

// Engine reconciles per-question answers from both sources.
type Engine struct {
	agreementBoost  float64
	conflictPenalty float64
	formBase        float64
	visionBase      float64
	reviewThreshold float64
	logger          *slog.Logger
}

// BelowReviewThreshold reports whether a confidence value warrants manual
// review, for callers that produce fields outside Reconcile.
func (e *Engine) BelowReviewThreshold(confidence float64) bool {
	return confidence < e.reviewThreshold
}

// Result is the reconciliation output for one run.
type Result struct {
	Fields     []types.ReconciledField
	Review     []types.ReviewItem
	Confidence float64 // aggregate run confidence in [0,1]
	Conflicts  int
}

// New creates an Engine from configuration.
func New(cfg config.ReconcileConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		agreementBoost:  cfg.AgreementBoost,
		conflictPenalty: cfg.ConflictPenalty,
		formBase:        cfg.FormBase,
		visionBase:      cfg.VisionBase,
		reviewThreshold: cfg.ReviewThreshold,
		logger:          logger,
	}
}

// Reconcile merges form and vision answers. Questions are matched by
// question ID when both sources use one, otherwise by normalized question
// text. Output preserves page order, then source order within a page.
func (e *Engine) Reconcile(form []types.FieldAnswer, visionAnswers []types.FieldAnswer) *Result {
	type slot struct {
		form   *types.FieldAnswer
		vision []types.FieldAnswer
		order  int
	}

	slots := make(map[string]*slot)
	var order []string
	next := 0

	add := func(key string) *slot {
		s, ok := slots[key]
		if !ok {
			s = &slot{order: next}
			next++
			slots[key] = s
			order = append(order, key)
		}
		return s
	}

	for i := range form {
		a := form[i]
		s := add(matchKey(a.Question))
		if s.form == nil {
			s.form = &form[i]
		}
	}
	for i := range visionAnswers {
		a := visionAnswers[i]
		s := add(matchKey(a.Question))
		s.vision = append(s.vision, a)
	}

	res := &Result{}
	sawForm := false
	sawVision := false

	for _, key := range order {
		s := slots[key]
		field := e.reconcileOne(s.form, s.vision)
		if field.Conflict != nil {
			res.Conflicts++
		}
		if s.form != nil && s.form.HasValue() {
			sawForm = true
		}
		for _, v := range s.vision {
			if v.HasValue() {
				sawVision = true
			}
		}
		res.Fields = append(res.Fields, field)
	}

	sort.SliceStable(res.Fields, func(i, j int) bool {
		return res.Fields[i].Question.Page < res.Fields[j].Question.Page
	})

	res.Confidence = e.aggregate(sawForm, sawVision, res.Conflicts)
	res.Review = e.reviewItems(res.Fields)
	return res
}

// reconcileOne scores a single question from its available sources.
func (e *Engine) reconcileOne(form *types.FieldAnswer, visionAnswers []types.FieldAnswer) types.ReconciledField {
	best := bestVision(visionAnswers)

	switch {
	case form != nil && form.HasValue():
		field := fromAnswer(*form)
		field.Confidence = 1.0
		if best != nil && best.HasValue() {
			if sameValue(*form, *best) {
				field.Confidence = clamp(1.0 + e.agreementBoost)
			} else {
				// The form layer is the document's own record. The
				// image reading is preserved as a conflict, never as
				// the value.
				field.Conflict = &types.Conflict{
					FormValue:   form.Value(),
					VisionValue: best.Value(),
				}
				field.Confidence = clamp(1.0 - e.conflictPenalty)
				e.logger.Debug("source conflict",
					"question", form.Question.QuestionID,
					"form", form.Value(),
					"vision", best.Value())
			}
		}
		field.NeedsReview = field.Conflict != nil || field.Confidence < e.reviewThreshold
		return field

	case best != nil && best.HasValue():
		field := fromAnswer(*best)
		field.Confidence = clamp(best.Confidence)
		field.NeedsReview = field.Confidence < e.reviewThreshold
		return field

	default:
		// No source produced a value. The question is still reported;
		// an absent answer is itself information for review.
		q := questionOf(form, visionAnswers, best)
		return types.ReconciledField{
			Question:    q,
			FinalValue:  nil,
			Confidence:  0.0,
			NeedsReview: true,
		}
	}
}

// aggregate computes the run-level confidence from source participation
// and conflict count, clamped to [0,1].
func (e *Engine) aggregate(sawForm, sawVision bool, conflicts int) float64 {
	score := 0.0
	if sawForm {
		score += e.formBase
	}
	if sawVision {
		score += e.visionBase
	}
	score -= float64(conflicts) * e.conflictPenalty
	return clamp(score)
}

// reviewItems flags every field needing manual verification.
func (e *Engine) reviewItems(fields []types.ReconciledField) []types.ReviewItem {
	var items []types.ReviewItem
	for _, f := range fields {
		if !f.NeedsReview {
			continue
		}
		reason := manualVerificationReason
		switch {
		case f.Conflict != nil:
			reason = fmt.Sprintf("%s: sources disagree (form %q, image %q)",
				manualVerificationReason, f.Conflict.FormValue, f.Conflict.VisionValue)
		case f.FinalValue == nil:
			reason = manualVerificationReason + ": no source produced a value"
		default:
			reason = fmt.Sprintf("%s: confidence %.2f below threshold %.2f",
				manualVerificationReason, f.Confidence, e.reviewThreshold)
		}
		items = append(items, types.ReviewItem{
			QuestionID: f.Question.QuestionID,
			Text:       f.Question.Text,
			Options:    f.Question.Options,
			Reason:     reason,
		})
	}
	return items
}

// bestVision picks the highest-confidence vision answer that carries a
// value, falling back to the highest-confidence answer overall.
func bestVision(answers []types.FieldAnswer) *types.FieldAnswer {
	var best *types.FieldAnswer
	for i := range answers {
		a := &answers[i]
		if best == nil {
			best = a
			continue
		}
		if a.HasValue() != best.HasValue() {
			if a.HasValue() {
				best = a
			}
			continue
		}
		if a.Confidence > best.Confidence {
			best = a
		}
	}
	return best
}

// fromAnswer seeds a reconciled field from one answer.
func fromAnswer(a types.FieldAnswer) types.ReconciledField {
	v := a.Value()
	return types.ReconciledField{
		Question:      a.Question,
		FinalValue:    &v,
		Selected:      a.Selected,
		PrimarySource: a.Source,
	}
}

// sameValue compares two answers order-insensitively for select kinds.
func sameValue(a, b types.FieldAnswer) bool {
	return strings.EqualFold(strings.TrimSpace(a.Value()), strings.TrimSpace(b.Value()))
}

// questionOf returns the richest question description available.
func questionOf(form *types.FieldAnswer, visionAnswers []types.FieldAnswer, best *types.FieldAnswer) types.FieldQuestion {
	if form != nil {
		return form.Question
	}
	if best != nil {
		return best.Question
	}
	if len(visionAnswers) > 0 {
		return visionAnswers[0].Question
	}
	return types.FieldQuestion{}
}

// matchKey builds the cross-source identity for a question. IDs assigned
// by form dictionaries and by page reading rarely coincide, so the
// normalized question text is the primary key with the ID as fallback.
func matchKey(q types.FieldQuestion) string {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	text = strings.Join(strings.Fields(text), " ")
	if text != "" {
		return text
	}
	return "id:" + strings.ToLower(strings.TrimSpace(q.QuestionID))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
