package export

import (
	"context"

	"github.com/local/cardforge/internal/document"
)

// Exporter writes a finished deck to some external form and returns the path
// (or URL) of the artifact. Packaging into Anki's binary .apkg format is
// always a collaborator's job, never done in-process.
type Exporter interface {
	Name() string
	Export(ctx context.Context, deck document.Deck) (string, error)
}
