package pdfexport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/voyagedesk/voyagedesk/internal/documents"
)

type countingRenderer struct {
	calls int32
	data  []byte
	err   error
}

func (r *countingRenderer) RenderDocument(_ context.Context, _ documents.Document) ([]byte, error) {
	atomic.AddInt32(&r.calls, 1)
	return r.data, r.err
}

func testCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func testDocument() documents.Document {
	return documents.Document{
		ID:        uuid.New(),
		Number:    "INV-1001",
		Type:      documents.TypeInvoice,
		Status:    documents.StatusIssued,
		Amount:    420.50,
		Currency:  "USD",
		UpdatedAt: time.Now().UTC(),
	}
}

func TestExportCachesRender(t *testing.T) {
	renderer := &countingRenderer{data: []byte("%PDF-1.7 fake")}
	exporter := NewExporter(renderer, testCache(t))
	doc := testDocument()

	first, err := exporter.Export(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, renderer.data, first)
	require.EqualValues(t, 1, atomic.LoadInt32(&renderer.calls))

	// Second export for the same version is a cache hit.
	second, err := exporter.Export(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, renderer.data, second)
	require.EqualValues(t, 1, atomic.LoadInt32(&renderer.calls))
}

func TestExportRerendersNewVersion(t *testing.T) {
	renderer := &countingRenderer{data: []byte("%PDF-1.7 fake")}
	exporter := NewExporter(renderer, testCache(t))
	doc := testDocument()

	_, err := exporter.Export(context.Background(), doc)
	require.NoError(t, err)

	// An update bumps UpdatedAt, which changes the cache key.
	doc.UpdatedAt = doc.UpdatedAt.Add(time.Second)
	_, err = exporter.Export(context.Background(), doc)
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&renderer.calls))
}

func TestExportPropagatesRenderError(t *testing.T) {
	renderErr := errors.New("conversion service down")
	renderer := &countingRenderer{err: renderErr}
	exporter := NewExporter(renderer, testCache(t))

	_, err := exporter.Export(context.Background(), testDocument())
	require.ErrorIs(t, err, renderErr)
}

func TestExportWithoutCache(t *testing.T) {
	renderer := &countingRenderer{data: []byte("%PDF-1.7 fake")}
	exporter := NewExporter(renderer, NewCache(nil, 0))
	doc := testDocument()

	_, err := exporter.Export(context.Background(), doc)
	require.NoError(t, err)
	_, err = exporter.Export(context.Background(), doc)
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&renderer.calls))
}

func TestCacheKeyIncludesVersion(t *testing.T) {
	id := uuid.New()
	at := time.Now()
	require.NotEqual(t, Key(id, at), Key(id, at.Add(time.Nanosecond)))
	require.Equal(t, Key(id, at), Key(id, at))
}

func TestClientRenderDocument(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("files")
		require.NoError(t, err)
		_, _ = w.Write([]byte("%PDF-1.7 rendered"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	data, err := client.RenderDocument(context.Background(), testDocument())
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.7 rendered"), data)
	require.Equal(t, "/forms/chromium/convert/html", gotPath)
}

func TestClientRenderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.RenderDocument(context.Background(), testDocument())
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
}

func TestClientPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, NewClient(server.URL).Ping(context.Background()))
}
