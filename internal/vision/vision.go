// Package vision runs structured extraction over page renderings with a
// vision-capable model. Each (page, variant) pair is one inference call;
// results are merged per question keeping the best-supported reading for
// every option.
package vision

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formscan/formscan/internal/prompts"
	"github.com/formscan/formscan/internal/providers"
	"github.com/formscan/formscan/internal/types"
)

// Extractor fans page renderings out to the model and merges the replies.
type Extractor struct {
	client   providers.LLMClient
	strategy prompts.Strategy
	limiter  *providers.RateLimiter
	workers  int
	model    string
	timeout  time.Duration
	logger   *slog.Logger
}

// Options configures an Extractor.
type Options struct {
	Client   providers.LLMClient
	Strategy prompts.Strategy
	Workers  int // concurrent in-flight calls; <= 0 means 3
	Model    string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// New creates an Extractor sharing one rate limiter across its workers.
// A client that exposes its own limiter shares the same bucket, so 429
// drains recorded by the client back all workers off together.
func New(opts Options) *Extractor {
	workers := opts.Workers
	if workers <= 0 {
		workers = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := providers.NewRateLimiter(opts.Client.RequestsPerMinute())
	if lp, ok := opts.Client.(interface{ Limiter() *providers.RateLimiter }); ok {
		if l := lp.Limiter(); l != nil {
			limiter = l
		}
	}
	return &Extractor{
		client:   opts.Client,
		strategy: opts.Strategy,
		limiter:  limiter,
		workers:  workers,
		model:    opts.Model,
		timeout:  opts.Timeout,
		logger:   logger,
	}
}

// Extract interprets all renderings and returns one merged answer per
// question, ordered by page then question ID, plus any equipment grid
// entries read off the pages. A failed or unparseable (page, variant)
// call degrades to an empty reading for that pair; the remaining pairs
// still contribute.
func (e *Extractor) Extract(ctx context.Context, renderings []types.PageRendering) ([]types.FieldAnswer, []prompts.EquipmentReading, error) {
	if len(renderings) == 0 {
		return nil, nil, nil
	}

	type task struct {
		key types.VariantKey
		png []byte
	}
	type result struct {
		key     types.VariantKey
		reading *prompts.PageReading
	}

	tasks := make(chan task)
	results := make(chan result, len(renderings))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				reading := e.readPage(ctx, t.key, t.png)
				results <- result{key: t.key, reading: reading}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, r := range renderings {
			select {
			case <-ctx.Done():
				return
			case tasks <- task{key: types.VariantKey{Page: r.Page, Variant: r.Variant}, png: r.PNG}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	readings := make(map[types.VariantKey]*prompts.PageReading)
	for r := range results {
		if r.reading != nil {
			readings[r.key] = r.reading
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if len(readings) == 0 {
		return nil, nil, fmt.Errorf("no page produced a readable extraction")
	}

	return e.merge(readings), mergeEquipment(readings), nil
}

// mergeEquipment deduplicates equipment entries across variants by brand
// and type, preferring entries that carry written years and keeping the
// best confidence seen for a row.
func mergeEquipment(readings map[types.VariantKey]*prompts.PageReading) []prompts.EquipmentReading {
	type eqKey struct{ brand, typ string }
	seen := make(map[eqKey]int)
	var out []prompts.EquipmentReading
	keys := make([]types.VariantKey, 0, len(readings))
	for k := range readings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Page != keys[j].Page {
			return keys[i].Page < keys[j].Page
		}
		return keys[i].Variant < keys[j].Variant
	})
	for _, k := range keys {
		for _, eq := range readings[k].Equipment {
			key := eqKey{brand: strings.ToLower(eq.Brand), typ: strings.ToLower(eq.Type)}
			if idx, ok := seen[key]; ok {
				if out[idx].Years == "" && eq.Years != "" {
					out[idx].Years = eq.Years
				}
				if eq.Confidence > out[idx].Confidence {
					out[idx].Confidence = eq.Confidence
				}
				continue
			}
			seen[key] = len(out)
			out = append(out, eq)
		}
	}
	return out
}

// readPage performs one inference call. Failures are logged and return
// nil so one bad (page, variant) pair never poisons the run.
func (e *Extractor) readPage(ctx context.Context, key types.VariantKey, png []byte) *prompts.PageReading {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil
	}

	req := &providers.ChatRequest{
		RequestID: uuid.New().String(),
		Model:     e.model,
		Messages: []providers.Message{
			{Role: "system", Content: e.strategy.SystemPrompt()},
			{
				Role:    "user",
				Content: e.strategy.UserPrompt(prompts.PageData{Page: key.Page, Variant: string(key.Variant)}),
				Images:  [][]byte{png},
			},
		},
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: e.strategy.Schema(),
		},
		Temperature: 0.1,
		Timeout:     e.timeout,
	}

	res, err := e.client.Chat(ctx, req)
	if err != nil {
		e.logger.Warn("inference failed, skipping rendering",
			"task", key.String(), "error", err)
		return nil
	}

	reading, err := e.strategy.Parse(res.Content)
	if err != nil {
		e.logger.Warn("unparseable extraction, skipping rendering",
			"task", key.String(), "request_id", res.RequestID, "error", err)
		return nil
	}
	return sanitize(key, reading, e.logger)
}

// sanitize enforces that selections are a subset of the reported options
// for select questions. A selection outside the option list is a model
// inconsistency; it is dropped and logged rather than propagated.
func sanitize(key types.VariantKey, reading *prompts.PageReading, logger *slog.Logger) *prompts.PageReading {
	for qi := range reading.Questions {
		q := &reading.Questions[qi]
		kind := types.ParseFieldKind(q.QuestionType)
		if !kind.IsSelect() {
			continue
		}
		known := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			known[o.Option] = true
		}
		kept := q.Selections[:0]
		for _, s := range q.Selections {
			if known[s] {
				kept = append(kept, s)
				continue
			}
			logger.Warn("selection not in option list, dropping",
				"task", key.String(), "question", q.QuestionID, "selection", s)
		}
		q.Selections = kept
	}
	return reading
}

// mergedQuestion accumulates one question's evidence across variants.
type mergedQuestion struct {
	question    types.FieldQuestion
	variant     types.RenderingVariant
	confidence  float64
	text        string
	textConf    float64
	optionOrder []string
	options     map[string]prompts.OptionReading
}

// merge folds per-variant readings into one answer per question. For each
// option the reading with the highest confidence wins, so a selection seen
// clearly in one variant survives a low-confidence miss in another.
func (e *Extractor) merge(readings map[types.VariantKey]*prompts.PageReading) []types.FieldAnswer {
	keys := make([]types.VariantKey, 0, len(readings))
	for k := range readings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Page != keys[j].Page {
			return keys[i].Page < keys[j].Page
		}
		return keys[i].Variant < keys[j].Variant
	})

	type qKey struct {
		page int
		id   string
	}
	merged := make(map[qKey]*mergedQuestion)
	var order []qKey

	for _, key := range keys {
		for _, q := range readings[key].Questions {
			k := qKey{page: key.Page, id: q.QuestionID}
			m, ok := merged[k]
			if !ok {
				m = &mergedQuestion{
					question: types.FieldQuestion{
						QuestionID: q.QuestionID,
						Page:       key.Page,
						Text:       q.QuestionText,
						Kind:       types.ParseFieldKind(q.QuestionType),
					},
					options: make(map[string]prompts.OptionReading),
				}
				merged[k] = m
				order = append(order, k)
			}
			if q.Confidence > m.confidence {
				m.confidence = q.Confidence
				m.variant = key.Variant
				m.question.Text = q.QuestionText
			}
			if q.TextResponse != "" && q.Confidence >= m.textConf {
				m.text = q.TextResponse
				m.textConf = q.Confidence
			}
			for _, o := range q.Options {
				prev, seen := m.options[o.Option]
				if !seen {
					m.optionOrder = append(m.optionOrder, o.Option)
				}
				if !seen || o.Confidence > prev.Confidence {
					m.options[o.Option] = o
				}
			}
		}
	}

	answers := make([]types.FieldAnswer, 0, len(order))
	for _, k := range order {
		m := merged[k]
		a := types.FieldAnswer{
			Question:   m.question,
			Source:     types.SourceVision,
			Variant:    m.variant,
			Text:       m.text,
			Confidence: m.confidence,
		}
		for _, name := range m.optionOrder {
			a.Question.Options = append(a.Question.Options, name)
			if m.options[name].Selected {
				a.Selected = append(a.Selected, name)
			}
		}
		answers = append(answers, a)
	}
	return answers
}
