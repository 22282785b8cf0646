package pdfexport

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/voyagedesk/voyagedesk/internal/documents"
)

// Renderer converts a document to PDF bytes.
type Renderer interface {
	RenderDocument(ctx context.Context, doc documents.Document) ([]byte, error)
}

// Exporter serves document PDFs from cache, rendering on miss. Concurrent
// requests for the same document version share a single render.
type Exporter struct {
	renderer Renderer
	cache    *Cache
	group    singleflight.Group
}

// NewExporter constructs an Exporter.
func NewExporter(renderer Renderer, cache *Cache) *Exporter {
	return &Exporter{renderer: renderer, cache: cache}
}

// Export returns the PDF for the given document version.
func (e *Exporter) Export(ctx context.Context, doc documents.Document) ([]byte, error) {
	key := Key(doc.ID, doc.UpdatedAt)
	if data, err := e.cache.Get(ctx, key); err == nil && len(data) > 0 {
		return data, nil
	}

	resultChan := e.group.DoChan(key, func() (interface{}, error) {
		data, err := e.renderer.RenderDocument(ctx, doc)
		if err != nil {
			return nil, err
		}
		_ = e.cache.Set(ctx, key, data)
		return data, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}
