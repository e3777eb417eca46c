package client

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/hm-edu/remotesign/models"
)

var pdfMagic = []byte("%PDF-")

// FetchDocument downloads the PDF to sign from a caller supplied link.
func (c *Client) FetchDocument(ctx context.Context, link string) (*models.Document, error) {
	resp, err := c.execute(OpFetchDocument, c.client.R().SetContext(ctx), resty.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	body := resp.Body()
	name := AttachName(link)
	if !bytes.HasPrefix(bytes.TrimLeft(body, "\r\n\t "), pdfMagic) {
		slog.Warn("Fetched document does not look like a PDF", slog.String("name", name), slog.String("content_type", resp.Header().Get("Content-Type")))
	}
	slog.Info("Fetched document", slog.String("name", name), slog.Int("bytes", len(body)))
	return &models.Document{Name: name, Content: body}, nil
}

// AttachName derives a display file name from a document link: the query is
// dropped and the last path segment is URL-decoded. Links without a usable
// segment get models.DefaultDocument.
func AttachName(link string) string {
	raw := link
	if u, err := url.Parse(link); err == nil {
		u.RawQuery = ""
		u.Fragment = ""
		raw = u.EscapedPath()
	}
	raw, _, _ = strings.Cut(raw, "?")
	segment := raw[strings.LastIndex(raw, "/")+1:]
	if name, err := url.PathUnescape(segment); err == nil {
		segment = name
	}
	if strings.TrimSpace(segment) == "" {
		return models.DefaultDocument
	}
	return segment
}
