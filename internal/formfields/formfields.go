// Package formfields reads embedded interactive form data out of a
// document. When a form layer is present its values are authoritative for
// the fields it covers; documents that are flat scans simply report no
// fields and the caller falls back to image interpretation alone.
package formfields

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"

	"github.com/formscan/formscan/internal/types"
)

// checkboxOnStates are the export values that mean a checkbox is ticked.
// Authoring tools disagree on the on-state name, so all common spellings
// are accepted.
var checkboxOnStates = map[string]bool{
	"yes":  true,
	"on":   true,
	"1":    true,
	"true": true,
	"x":    true,
}

// Extractor pulls interactive form fields from a document.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract reads the form layer of doc. It never fails the run: corrupt or
// unparseable documents and documents without a form layer both return
// HasFields=false and a nil error, so vision extraction proceeds alone.
func (e *Extractor) Extract(doc types.RawDocument) (*types.FormExtraction, error) {
	fields, err := api.FormFields(bytes.NewReader(doc.Data), nil)
	if err != nil {
		e.logger.Warn("no readable form layer",
			"attachment_id", doc.AttachmentID,
			"error", err)
		return &types.FormExtraction{HasFields: false}, nil
	}
	if len(fields) == 0 {
		return &types.FormExtraction{HasFields: false}, nil
	}

	out := &types.FormExtraction{HasFields: true}
	for _, f := range fields {
		answer, ok := e.convert(f)
		if !ok {
			continue
		}
		out.Answers = append(out.Answers, answer)
	}
	out.HasFields = len(out.Answers) > 0
	return out, nil
}

// convert maps one raw field to an answer. Values coming from the form
// layer carry full confidence; the form is the document's own record of
// what was entered.
func (e *Extractor) convert(f form.Field) (types.FieldAnswer, bool) {
	page := 0
	if len(f.Pages) > 0 {
		page = f.Pages[0]
	}

	q := types.FieldQuestion{
		QuestionID: fieldID(f),
		Page:       page,
		Text:       fieldLabel(f),
	}

	answer := types.FieldAnswer{
		Source:     types.SourceInteractiveForm,
		Confidence: 1.0,
	}

	switch f.Typ {
	case form.FTCheckBox:
		q.Kind = types.KindCheckbox
		if CheckboxOn(f.V) {
			answer.Selected = []string{"Yes"}
		}
	case form.FTRadioButtonGroup:
		q.Kind = types.KindRadio
		q.Options = SplitOptions(f.Opts)
		// An empty V is a real observation: the applicant selected
		// nothing. The answer is still emitted so reconciliation can
		// weigh it against what the image shows.
		if v := strings.TrimSpace(f.V); v != "" {
			answer.Selected = []string{v}
		}
	case form.FTComboBox, form.FTListBox:
		q.Kind = types.KindDropdown
		q.Options = SplitOptions(f.Opts)
		if v := strings.TrimSpace(f.V); v != "" {
			answer.Selected = []string{v}
		}
	case form.FTText, form.FTDate:
		q.Kind = types.KindText
		answer.Text = strings.TrimSpace(f.V)
	default:
		e.logger.Debug("skipping unsupported field type",
			"field", f.ID, "type", f.Typ)
		return types.FieldAnswer{}, false
	}

	answer.Question = q
	return answer, true
}

// CheckboxOn reports whether a checkbox export value means ticked.
func CheckboxOn(v string) bool {
	return checkboxOnStates[strings.ToLower(strings.TrimSpace(v))]
}

// SplitOptions parses the comma-separated option list pdfcpu reports for
// choice fields.
func SplitOptions(opts string) []string {
	if strings.TrimSpace(opts) == "" {
		return nil
	}
	parts := strings.Split(opts, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// fieldID prefers the short identifier, falling back to the full name.
func fieldID(f form.Field) string {
	if f.ID != "" {
		return f.ID
	}
	return f.Name
}

// fieldLabel prefers the human-readable alternate name over the internal
// field name.
func fieldLabel(f form.Field) string {
	if f.AltName != "" {
		return f.AltName
	}
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}
