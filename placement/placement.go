// Package placement computes where visible signature stamps go on a PDF.
//
// All coordinates are PDF points on an A4 page with the origin at the lower
// left corner. Named positions keep a fixed 80x30 stamp 15 points from the
// page edges.
package placement

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hm-edu/remotesign/models"
)

const (
	PageWidth   = 595
	PageHeight  = 842
	StampWidth  = 80
	StampHeight = 30
	Margin      = 15
)

type PageSelector string

const (
	FirstPage PageSelector = "first-page"
	LastPage  PageSelector = "last-page"
	AllPages  PageSelector = "all-pages"
)

type Position string

const (
	BottomRight  Position = "bottom-right"
	BottomLeft   Position = "bottom-left"
	BottomCenter Position = "bottom-center"
	TopRight     Position = "top-right"
	TopLeft      Position = "top-left"
	TopCenter    Position = "top-center"
	Center       Position = "center"
	Custom       Position = "custom"
)

// NamedPositions are the positions computed from the page geometry.
var NamedPositions = []Position{BottomRight, BottomLeft, BottomCenter, TopRight, TopLeft, TopCenter, Center}

var (
	ErrCustomRectRequired = errors.New("custom position requires a rectangle (llx, lly, urx, ury)")
	ErrInvalidRect        = errors.New("rectangle must have positive width and height")
	ErrInvalidPageCount   = errors.New("page count must be at least 1")
)

// Appearance is shared by every field of a plan.
type Appearance struct {
	Text     string
	FontSize int
	// Image is the base64 encoded stamp image.
	Image string
}

// Pages returns the 1-based page numbers selected by sel. Unknown selectors
// select every page.
func Pages(pageCount int, sel PageSelector) ([]int, error) {
	if pageCount < 1 {
		return nil, ErrInvalidPageCount
	}
	switch sel {
	case FirstPage:
		return []int{1}, nil
	case LastPage:
		return []int{pageCount}, nil
	}
	pages := make([]int, pageCount)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages, nil
}

// Rectangle returns the stamp rectangle for pos. Unknown positions fall back
// to bottom-right.
func Rectangle(pos Position, custom *models.StampRect) (models.StampRect, error) {
	if pos == Custom {
		if custom == nil {
			return models.StampRect{}, ErrCustomRectRequired
		}
		if custom.Width() <= 0 || custom.Height() <= 0 {
			return models.StampRect{}, fmt.Errorf("%w: %+v", ErrInvalidRect, *custom)
		}
		return *custom, nil
	}

	left := Margin
	right := PageWidth - StampWidth - Margin
	hcenter := (PageWidth - StampWidth) / 2
	bottom := Margin
	top := PageHeight - StampHeight - Margin
	vcenter := (PageHeight - StampHeight) / 2

	switch pos {
	case BottomLeft:
		return rect(left, bottom), nil
	case BottomCenter:
		return models.StampRect{LLX: hcenter, LLY: bottom, URX: (PageWidth + StampWidth) / 2, URY: bottom + StampHeight}, nil
	case TopRight:
		return rect(right, top), nil
	case TopLeft:
		return rect(left, top), nil
	case TopCenter:
		return models.StampRect{LLX: hcenter, LLY: top, URX: (PageWidth + StampWidth) / 2, URY: PageHeight - Margin}, nil
	case Center:
		return models.StampRect{
			LLX: hcenter,
			LLY: vcenter,
			URX: (PageWidth + StampWidth) / 2,
			URY: (PageHeight + StampHeight) / 2,
		}, nil
	default:
		return rect(right, bottom), nil
	}
}

func rect(llx, lly int) models.StampRect {
	return models.StampRect{LLX: llx, LLY: lly, URX: llx + StampWidth, URY: lly + StampHeight}
}

// Plan produces one signature field per selected page, in ascending page
// order, all sharing the same rectangle and appearance.
func Plan(pageCount int, sel PageSelector, pos Position, custom *models.StampRect, appearance Appearance) ([]models.SignatureField, error) {
	r, err := Rectangle(pos, custom)
	if err != nil {
		return nil, err
	}
	pages, err := Pages(pageCount, sel)
	if err != nil {
		return nil, err
	}

	fields := make([]models.SignatureField, 0, len(pages))
	for _, p := range pages {
		fields = append(fields, models.SignatureField{
			Page:     p,
			LLX:      r.LLX,
			LLY:      r.LLY,
			URX:      r.URX,
			URY:      r.URY,
			Image:    appearance.Image,
			Text:     appearance.Text,
			FontSize: appearance.FontSize,
		})
	}
	return fields, nil
}

// ParseRect reads a rectangle written as "llx,lly,urx,ury".
func ParseRect(s string) (*models.StampRect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("rectangle %q: expected llx,lly,urx,ury", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("rectangle %q: %w", s, err)
		}
		v[i] = n
	}
	return &models.StampRect{LLX: v[0], LLY: v[1], URX: v[2], URY: v[3]}, nil
}

type NamedRect struct {
	Position Position         `json:"position" yaml:"position"`
	Rect     models.StampRect `json:"rect" yaml:"rect"`
}

// Positions lists every named position with its rectangle.
func Positions() []NamedRect {
	out := make([]NamedRect, 0, len(NamedPositions))
	for _, p := range NamedPositions {
		r, _ := Rectangle(p, nil)
		out = append(out, NamedRect{Position: p, Rect: r})
	}
	return out
}
