// Package pdfinfo inspects source PDFs before they are sent for signing.
package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/digitorus/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var ErrNoPages = errors.New("document has no pages")

type PageCounter interface {
	PageCount(data []byte) (int, error)
}

var disableConfigDir sync.Once

// PdfcpuCounter counts pages with pdfcpu in relaxed validation mode, which
// tolerates broken cross reference tables.
type PdfcpuCounter struct{}

func (PdfcpuCounter) PageCount(data []byte) (n int, err error) {
	disableConfigDir.Do(api.DisableConfigDir)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu: %v", r)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err = api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, ErrNoPages
	}
	return n, nil
}

// ReaderCounter counts pages by walking the page tree with digitorus/pdf.
type ReaderCounter struct{}

func (ReaderCounter) PageCount(data []byte) (n int, err error) {
	r, err := open(data)
	if err != nil {
		return 0, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf: %v", rec)
		}
	}()
	n = r.NumPage()
	if n < 1 {
		return 0, ErrNoPages
	}
	return n, nil
}

func open(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// Fallback tries Primary, then Secondary, and assumes a single page when
// both fail. A missing counter is skipped.
type Fallback struct {
	Primary   PageCounter
	Secondary PageCounter
}

// DefaultCounter is the counter used for signing.
func DefaultCounter() Fallback {
	return Fallback{Primary: PdfcpuCounter{}, Secondary: ReaderCounter{}}
}

func (f Fallback) Count(data []byte) int {
	var errs []error
	for _, c := range []PageCounter{f.Primary, f.Secondary} {
		if c == nil {
			continue
		}
		n, err := c.PageCount(data)
		if err == nil {
			return n
		}
		errs = append(errs, err)
		slog.Debug("Page counter failed", slog.String("counter", fmt.Sprintf("%T", c)), slog.Any("error", err))
	}
	slog.Warn("Could not count pages, assuming one", slog.Any("error", errors.Join(errs...)))
	return 1
}

// PageCount makes Fallback usable where a PageCounter is expected. It never
// fails.
func (f Fallback) PageCount(data []byte) (int, error) {
	return f.Count(data), nil
}
