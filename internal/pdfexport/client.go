// Package pdfexport renders documents to PDF through the external
// Gotenberg-compatible conversion service, treated as a black box that
// returns bytes or an error.
package pdfexport

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/voyagedesk/voyagedesk/internal/documents"
)

// Client wraps interactions with the PDF conversion API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks if the remote conversion service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("pdf service returned status %d", resp.StatusCode)
	}
	return nil
}

// RenderDocument converts the document into a PDF.
func (c *Client) RenderDocument(ctx context.Context, doc documents.Document) ([]byte, error) {
	return c.RenderHTML(ctx, documentHTML(doc))
}

// RenderHTML converts raw HTML into a PDF.
func (c *Client) RenderHTML(ctx context.Context, htmlBody string) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "document.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, bytes.NewBufferString(htmlBody)); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/forms/chromium/convert/html", c.baseURL), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("render failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func documentHTML(doc documents.Document) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title></head>
<body>
<h1>%s</h1>
<table>
<tr><td>Type</td><td>%s</td></tr>
<tr><td>Status</td><td>%s</td></tr>
<tr><td>Amount</td><td>%.2f %s</td></tr>
</table>
<p>%s</p>
</body></html>`,
		html.EscapeString(doc.Number),
		html.EscapeString(doc.Number),
		html.EscapeString(string(doc.Type)),
		html.EscapeString(string(doc.Status)),
		doc.Amount,
		html.EscapeString(doc.Currency),
		html.EscapeString(doc.Notes))
}
