package secondary

import (
	"context"

	"github.com/example/schemareg/internal/ingest"
)

// DocumentSource defines the secondary port for reading uploaded schema documents.
type DocumentSource interface {
	// Load reads every schema document under paths. Directories are walked
	// recursively; files are read as given.
	Load(ctx context.Context, paths []string) ([]ingest.Document, error)
}
