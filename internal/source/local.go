package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/formscan/formscan/internal/types"
)

// LocalStore treats attachment IDs as filesystem paths, for CLI use and
// testing against documents on disk.
type LocalStore struct{}

// Download reads the document at path.
func (LocalStore) Download(_ context.Context, path string) (types.RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.RawDocument{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return types.RawDocument{}, fmt.Errorf("%s is empty", path)
	}
	name := filepath.Base(path)
	return types.RawDocument{
		AttachmentID: path,
		Filename:     name,
		Kind:         SniffKind("", name, data),
		Data:         data,
	}, nil
}

var _ Store = LocalStore{}
