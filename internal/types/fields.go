// Package types provides shared types used across multiple packages.
// This package has no dependencies on other formscan packages to avoid import cycles.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// MediaKind declares how a raw document's bytes should be interpreted.
type MediaKind string

const (
	// MediaPaginatedDocument is a paginated document (PDF) that may carry
	// interactive form fields and must be rendered to page images.
	MediaPaginatedDocument MediaKind = "paginated_document"
	// MediaPageImage is a single pre-rendered page image.
	MediaPageImage MediaKind = "page_image"
)

// RawDocument is the opaque input to one extraction run. It is owned
// transiently by the pipeline invocation and discarded after extraction.
type RawDocument struct {
	AttachmentID string
	Filename     string
	Kind         MediaKind
	Data         []byte
}

// RenderingVariant tags one image-preprocessing transform applied to a page.
type RenderingVariant string

const (
	VariantOriginal          RenderingVariant = "original"
	VariantContrast          RenderingVariant = "contrast"
	VariantBinarizedCheckbox RenderingVariant = "binarized-checkbox"
	VariantBinarizedRadio    RenderingVariant = "binarized-radio"
	VariantEdgeEnhanced      RenderingVariant = "edge-enhanced"
	VariantInverted          RenderingVariant = "inverted"
)

// PageRendering is one rasterized page plus its variant tag.
// Immutable once created; many renderings may derive from one page.
type PageRendering struct {
	Page    int // 1-based page index, stable across variants
	Variant RenderingVariant
	PNG     []byte
	Width   int
	Height  int
}

// FieldKind classifies how a form question collects its answer.
type FieldKind string

const (
	// KindRadio is a single-select exclusive choice group.
	KindRadio FieldKind = "radio"
	// KindCheckbox is a multi-select checkbox list.
	KindCheckbox FieldKind = "checkbox"
	// KindText is a free-text field.
	KindText FieldKind = "text"
	// KindDropdown is a single-select dropdown.
	KindDropdown FieldKind = "dropdown"
)

// ParseFieldKind converts a string to a FieldKind. Unrecognized strings
// map to KindText, the least constrained kind.
func ParseFieldKind(s string) FieldKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "radio", "radio_button", "radio-button", "single_select":
		return KindRadio
	case "checkbox", "checkbox_list", "checkbox-list", "multi_select":
		return KindCheckbox
	case "dropdown", "select", "combo", "listbox":
		return KindDropdown
	default:
		return KindText
	}
}

// IsSelect reports whether the kind carries selections from a fixed option list.
func (k FieldKind) IsSelect() bool {
	return k == KindRadio || k == KindCheckbox || k == KindDropdown
}

// FieldQuestion is one form question as seen on a page or in a form dictionary.
type FieldQuestion struct {
	QuestionID string    // stable ordinal or field name
	Page       int       // 1-based; 0 when unknown (form dictionary without page info)
	Text       string    // complete question text as shown
	Kind       FieldKind
	Options    []string // all choices shown, whether or not selected
	Required   bool
}

// AnswerSource identifies which evidence source produced a FieldAnswer.
type AnswerSource string

const (
	// SourceInteractiveForm means the answer was read from the document's
	// own form dictionary. Authoritative; never carries confidence below 1.0.
	SourceInteractiveForm AnswerSource = "interactive-form"
	// SourceVision means the answer came from vision-model interpretation
	// of a page rendering.
	SourceVision AnswerSource = "vision"
)

// FieldAnswer is one source's reading of one FieldQuestion. Answers never
// mutate each other; reconciliation derives a new record.
type FieldAnswer struct {
	Question   FieldQuestion
	Source     AnswerSource
	Variant    RenderingVariant // set for vision answers
	Selected   []string         // subset of Question.Options for select kinds
	Text       string           // for free-text kinds
	Confidence float64          // in [0,1]
}

// HasValue reports whether the answer carries any value at all.
func (a FieldAnswer) HasValue() bool {
	return len(a.Selected) > 0 || strings.TrimSpace(a.Text) != ""
}

// Value renders the answer's value for comparison and display.
// Select kinds join their sorted selections so ordering differences
// between sources do not register as conflicts.
func (a FieldAnswer) Value() string {
	if len(a.Selected) > 0 {
		sorted := make([]string, len(a.Selected))
		copy(sorted, a.Selected)
		sort.Strings(sorted)
		return strings.Join(sorted, ", ")
	}
	return strings.TrimSpace(a.Text)
}

// Conflict records a disagreement between two sources for the same question.
type Conflict struct {
	FormValue   string `json:"form_value" yaml:"form_value"`
	VisionValue string `json:"vision_value" yaml:"vision_value"`
}

// ReconciledField is the reconciliation engine's output per question.
type ReconciledField struct {
	Question      FieldQuestion   `json:"question" yaml:"question"`
	Key           CanonicalKey    `json:"key,omitempty" yaml:"key,omitempty"`
	FinalValue    *string         `json:"final_value" yaml:"final_value"` // nil when no source produced a value
	Selected      []string        `json:"selected,omitempty" yaml:"selected,omitempty"`
	PrimarySource AnswerSource    `json:"primary_source,omitempty" yaml:"primary_source,omitempty"`
	Confidence    float64         `json:"confidence" yaml:"confidence"`
	Conflict      *Conflict       `json:"conflict,omitempty" yaml:"conflict,omitempty"`
	NeedsReview   bool            `json:"needs_review" yaml:"needs_review"`
}

// CanonicalKey is a stable semantic identifier that one or more differently
// worded questions normalize onto, e.g. "credentials.red_seal".
type CanonicalKey string

// Prefix returns the key's first dotted segment, used for bucket rollup.
func (k CanonicalKey) Prefix() string {
	s := string(k)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// Bucket names one domain rollup group in the categorized answer set.
type Bucket string

const (
	BucketCredentials Bucket = "credentials"
	BucketEquipment   Bucket = "equipment"
	BucketScheduling  Bucket = "scheduling"
	BucketEmployment  Bucket = "employment"
	BucketOther       Bucket = "other"
)

// ReviewItem flags one question for manual verification, with the options a
// reviewer needs to resolve it.
type ReviewItem struct {
	QuestionID string   `json:"question_id" yaml:"question_id"`
	Text       string   `json:"text" yaml:"text"`
	Options    []string `json:"options,omitempty" yaml:"options,omitempty"`
	Reason     string   `json:"reason" yaml:"reason"`
}

// CategorizedAnswerSet is the boundary output of one extraction run.
type CategorizedAnswerSet struct {
	RunID         string                       `json:"run_id" yaml:"run_id"`
	AttachmentID  string                       `json:"attachment_id,omitempty" yaml:"attachment_id,omitempty"`
	Fields        []ReconciledField            `json:"fields" yaml:"fields"`
	Buckets       map[Bucket][]ReconciledField `json:"buckets" yaml:"buckets"`
	Confidence    float64                      `json:"confidence" yaml:"confidence"`
	ManualReview  []ReviewItem                 `json:"manual_review,omitempty" yaml:"manual_review,omitempty"`
	ProcessingLog []string                     `json:"processing_log,omitempty" yaml:"processing_log,omitempty"`
}

// FormExtraction is the interactive form-field extractor's output.
type FormExtraction struct {
	HasFields bool
	Answers   []FieldAnswer // confidence 1.0 each, document order
}

// VariantKey identifies one (page, variant) vision task.
type VariantKey struct {
	Page    int
	Variant RenderingVariant
}

func (k VariantKey) String() string {
	return fmt.Sprintf("page %d (%s)", k.Page, k.Variant)
}
