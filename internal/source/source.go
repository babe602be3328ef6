// Package source fetches raw documents from the upstream document store
// and publishes finished answer sets back to it. The pipeline only sees
// the Store and Notifier interfaces; transports are swappable.
package source

import (
	"context"

	"github.com/formscan/formscan/internal/types"
)

// Store retrieves raw documents by attachment ID.
type Store interface {
	Download(ctx context.Context, attachmentID string) (types.RawDocument, error)
}

// Notifier publishes a finished answer set to an external consumer.
type Notifier interface {
	Publish(ctx context.Context, targetID string, set *types.CategorizedAnswerSet) error
}
