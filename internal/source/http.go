package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/formscan/formscan/internal/config"
	"github.com/formscan/formscan/internal/types"
)

// maxDocumentSize caps downloads; scanned questionnaires run a few MB.
const maxDocumentSize = 100 << 20

// HTTPStore downloads attachments from the document store's REST API.
type HTTPStore struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	logger     *slog.Logger
}

// NewHTTPStore creates an HTTPStore from configuration.
func NewHTTPStore(cfg config.SourceConfig, logger *slog.Logger) *HTTPStore {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPStore{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     config.ResolveEnvVars(cfg.APIKey),
		client:     &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// Download fetches one attachment, retrying transient failures with
// exponential backoff. The media kind is sniffed from the response
// content type, falling back to the filename extension.
func (s *HTTPStore) Download(ctx context.Context, attachmentID string) (types.RawDocument, error) {
	url := fmt.Sprintf("%s/attachments/%s/download", s.baseURL, attachmentID)

	var doc types.RawDocument
	err := retry.Do(
		func() error {
			var err error
			doc, err = s.fetch(ctx, url, attachmentID)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.maxRetries)+1),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("download retry",
				"attachment_id", attachmentID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return types.RawDocument{}, fmt.Errorf("downloading attachment %s: %w", attachmentID, err)
	}
	return doc, nil
}

func (s *HTTPStore) fetch(ctx context.Context, url, attachmentID string) (types.RawDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.RawDocument{}, retry.Unrecoverable(err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Token "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return types.RawDocument{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return types.RawDocument{}, retry.Unrecoverable(fmt.Errorf("attachment not found (404)"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return types.RawDocument{}, retry.Unrecoverable(fmt.Errorf("access denied (%d)", resp.StatusCode))
	default:
		return types.RawDocument{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return types.RawDocument{}, err
	}
	if len(data) == 0 {
		return types.RawDocument{}, fmt.Errorf("empty response body")
	}

	filename := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	return types.RawDocument{
		AttachmentID: attachmentID,
		Filename:     filename,
		Kind:         SniffKind(resp.Header.Get("Content-Type"), filename, data),
		Data:         data,
	}, nil
}

// Publish posts a finished answer set back to the store as JSON.
func (s *HTTPStore) Publish(ctx context.Context, targetID string, set *types.CategorizedAnswerSet) error {
	body, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encoding answer set: %w", err)
	}

	url := fmt.Sprintf("%s/candidates/%s/answers", s.baseURL, targetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Token "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("publishing answers for %s: %w", targetID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("publishing answers for %s: status %d", targetID, resp.StatusCode)
	}
	return nil
}

// SniffKind decides how to interpret document bytes: content type first,
// then filename extension, then magic bytes.
func SniffKind(contentType, filename string, data []byte) types.MediaKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/pdf"):
		return types.MediaPaginatedDocument
	case strings.HasPrefix(ct, "image/"):
		return types.MediaPageImage
	}

	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return types.MediaPaginatedDocument
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return types.MediaPageImage
	}

	if len(data) >= 5 && string(data[:5]) == "%PDF-" {
		return types.MediaPaginatedDocument
	}
	return types.MediaPageImage
}

// filenameFromDisposition extracts filename="..." from a
// Content-Disposition header.
func filenameFromDisposition(header string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(strings.ToLower(part), "filename=") {
			return strings.Trim(part[len("filename="):], `"`)
		}
	}
	return ""
}

var (
	_ Store    = (*HTTPStore)(nil)
	_ Notifier = (*HTTPStore)(nil)
)
