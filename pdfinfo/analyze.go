package pdfinfo

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode"

	"github.com/digitorus/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/hm-edu/remotesign/models"
)

const (
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"

	LinePattern = "line_pattern"

	maxFieldDepth = 32
	maxHintText   = 120
)

var (
	Keywords     = []string{"firma", "signature", "sottoscritto", "firmatario", "sign here"}
	LinePatterns = []string{"_____", ".....", "-----"}
)

// Analyze looks for places a document expects a signature: AcroForm
// signature fields first, then signature keywords and signature lines in the
// page text.
func Analyze(data []byte) (*models.PlacementHints, error) {
	r, err := open(data)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	hints := &models.PlacementHints{
		AcroFormFields: []models.AcroFormField{},
		TextHints:      []models.TextHint{},
	}
	hints.TotalPages, err = ReaderCounter{}.PageCount(data)
	if err != nil {
		hints.TotalPages = DefaultCounter().Count(data)
	}

	widgets := widgetPages(r, hints.TotalPages)
	hints.AcroFormFields = signatureFields(r, widgets)
	hints.HasAcroFormField = len(hints.AcroFormFields) > 0

	for page := 1; page <= hints.TotalPages; page++ {
		lines, err := pageLines(r, page)
		if err != nil {
			slog.Debug("Skipping unreadable page", slog.Int("page", page), slog.Any("error", err))
			continue
		}
		hints.TextHints = append(hints.TextHints, textHints(page, lines)...)
	}

	hints.Recommendation = recommend(hints)
	return hints, nil
}

func recommend(h *models.PlacementHints) string {
	switch {
	case h.HasAcroFormField:
		return fmt.Sprintf("Use the AcroForm field '%s'", h.AcroFormFields[0].Name)
	case len(h.TextHints) > 0:
		first := h.TextHints[0]
		return fmt.Sprintf("Found '%s' on page %d, sign there", first.Keyword, first.Page)
	default:
		return "No hints found, ask the user where to sign"
	}
}

// signatureFields walks the AcroForm field tree and keeps fields of type
// Sig or with "signature" in their name.
func signatureFields(r *pdf.Reader, widgets map[string]int) (fields []models.AcroFormField) {
	fields = []models.AcroFormField{}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Debug("AcroForm is malformed", slog.Any("error", rec))
		}
	}()
	acro := r.Trailer().Key("Root").Key("AcroForm")
	if acro.IsNull() {
		return fields
	}
	var walk func(v pdf.Value, parent, inheritedType string, depth int)
	walk = func(v pdf.Value, parent, inheritedType string, depth int) {
		if depth > maxFieldDepth {
			return
		}
		name := qualify(parent, v.Key("T").Text())
		typ := v.Key("FT").Name()
		if typ == "" {
			typ = inheritedType
		}
		kids := v.Key("Kids")
		if kids.Len() > 0 && !kids.Index(0).Key("T").IsNull() {
			for i := 0; i < kids.Len(); i++ {
				walk(kids.Index(i), name, typ, depth+1)
			}
			return
		}
		if typ == "Sig" || strings.Contains(strings.ToLower(name), "signature") {
			fields = append(fields, models.AcroFormField{Name: name, Type: "/" + typ, Page: widgets[name]})
		}
	}
	all := acro.Key("Fields")
	for i := 0; i < all.Len(); i++ {
		walk(all.Index(i), "", "", 0)
	}
	return fields
}

// widgetPages maps fully qualified field names to the page carrying their
// widget annotation.
func widgetPages(r *pdf.Reader, pages int) map[string]int {
	found := map[string]int{}
	for page := 1; page <= pages; page++ {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Debug("Annotations are malformed", slog.Int("page", page), slog.Any("error", rec))
				}
			}()
			annots := r.Page(page).V.Key("Annots")
			for i := 0; i < annots.Len(); i++ {
				a := annots.Index(i)
				if a.Key("Subtype").Name() != "Widget" {
					continue
				}
				if name := fieldName(a); name != "" {
					if _, ok := found[name]; !ok {
						found[name] = page
					}
				}
			}
		}()
	}
	return found
}

func fieldName(v pdf.Value) string {
	var parts []string
	for depth := 0; !v.IsNull() && depth <= maxFieldDepth; depth++ {
		if t := v.Key("T").Text(); t != "" {
			parts = append([]string{t}, parts...)
		}
		v = v.Key("Parent")
	}
	return strings.Join(parts, ".")
}

func qualify(parent, name string) string {
	switch {
	case parent == "":
		return name
	case name == "":
		return parent
	default:
		return parent + "." + name
	}
}

type line struct {
	text string
	x, y float64
}

// matrix is an affine transform [a b c d e f] as used by PDF content streams.
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func translate(tx, ty float64) matrix {
	return matrix{1, 0, 0, 1, tx, ty}
}

// run is a string shown by one text operator, in device space.
type run struct {
	text       string
	x, y, endX float64
	size       float64
}

type textState struct {
	tm, tlm, ctm matrix
	font         pdf.Font
	enc          pdf.TextEncoding
	size         float64
	leading      float64
	charSpace    float64
	wordSpace    float64
	scale        float64
}

// defaultGlyphWidth is used for fonts without /Widths, such as the standard
// 14 fonts, in thousandths of the font size.
const defaultGlyphWidth = 500

// pageRuns walks the content streams of a page and returns the shown
// strings with spaces intact.
func pageRuns(p pdf.Page) []run {
	contents := p.V.Key("Contents")
	streams := []pdf.Value{contents}
	if contents.Kind() == pdf.Array {
		streams = streams[:0]
		for i := 0; i < contents.Len(); i++ {
			streams = append(streams, contents.Index(i))
		}
	}

	var (
		runs  []run
		stack []textState
		g     = textState{tm: identity, tlm: identity, ctm: identity, scale: 1}
	)
	show := func(raw string) {
		text := raw
		if g.enc != nil {
			text = g.enc.Decode(raw)
		}
		start := g.tm.mul(g.ctm)
		var advance float64
		for i := 0; i < len(raw); i++ {
			w := g.font.Width(int(raw[i]))
			if w == 0 {
				w = defaultGlyphWidth
			}
			tx := w/1000*g.size + g.charSpace
			if raw[i] == ' ' {
				tx += g.wordSpace
			}
			advance += tx * g.scale
		}
		g.tm = translate(advance, 0).mul(g.tm)
		end := g.tm.mul(g.ctm)
		runs = append(runs, run{
			text: text,
			x:    start[4],
			y:    start[5],
			endX: end[4],
			size: g.size * math.Hypot(start[2], start[3]),
		})
	}
	nextLine := func() {
		g.tlm = translate(0, -g.leading).mul(g.tlm)
		g.tm = g.tlm
	}

	for _, strm := range streams {
		if strm.Kind() != pdf.Stream {
			continue
		}
		pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
			args := make([]pdf.Value, stk.Len())
			for i := len(args) - 1; i >= 0; i-- {
				args[i] = stk.Pop()
			}
			num := func(i int) float64 {
				if i >= len(args) {
					return 0
				}
				return args[i].Float64()
			}
			switch op {
			case "q":
				stack = append(stack, g)
			case "Q":
				if n := len(stack); n > 0 {
					g, stack = stack[n-1], stack[:n-1]
				}
			case "cm":
				if len(args) == 6 {
					g.ctm = matrix{num(0), num(1), num(2), num(3), num(4), num(5)}.mul(g.ctm)
				}
			case "BT":
				g.tm, g.tlm = identity, identity
			case "Tf":
				if len(args) == 2 {
					g.font = p.Font(args[0].Name())
					g.enc = g.font.Encoder()
					g.size = num(1)
				}
			case "Tc":
				g.charSpace = num(0)
			case "Tw":
				g.wordSpace = num(0)
			case "Tz":
				g.scale = num(0) / 100
			case "TL":
				g.leading = num(0)
			case "TD":
				g.leading = -num(1)
				g.tlm = translate(num(0), num(1)).mul(g.tlm)
				g.tm = g.tlm
			case "Td":
				g.tlm = translate(num(0), num(1)).mul(g.tlm)
				g.tm = g.tlm
			case "Tm":
				if len(args) == 6 {
					g.tm = matrix{num(0), num(1), num(2), num(3), num(4), num(5)}
					g.tlm = g.tm
				}
			case "T*":
				nextLine()
			case "Tj":
				if len(args) == 1 {
					show(args[0].RawString())
				}
			case "'":
				if len(args) == 1 {
					nextLine()
					show(args[0].RawString())
				}
			case "\"":
				if len(args) == 3 {
					g.wordSpace, g.charSpace = num(0), num(1)
					nextLine()
					show(args[2].RawString())
				}
			case "TJ":
				if len(args) != 1 {
					return
				}
				for i := 0; i < args[0].Len(); i++ {
					x := args[0].Index(i)
					if x.Kind() == pdf.String {
						show(x.RawString())
						continue
					}
					g.tm = translate(-x.Float64()/1000*g.size*g.scale, 0).mul(g.tm)
				}
			}
		})
	}
	return runs
}

// pageLines rebuilds text lines from the runs of a page. Runs on the same
// baseline are joined, with a space where the next run starts clearly past
// the end of the previous one.
func pageLines(r *pdf.Reader, page int) (lines []line, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", page, rec)
		}
	}()
	p := r.Page(page)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d: missing", page)
	}
	var (
		b       strings.Builder
		current *line
		prev    run
	)
	flush := func() {
		if current != nil {
			current.text = strings.TrimSpace(b.String())
			if current.text != "" {
				lines = append(lines, *current)
			}
		}
		b.Reset()
		current = nil
	}
	for _, t := range pageRuns(p) {
		if t.text == "" {
			continue
		}
		if current != nil && math.Abs(t.y-prev.y) > math.Max(t.size, prev.size)/2 {
			flush()
		}
		if current == nil {
			current = &line{x: t.x, y: t.y}
		} else if t.x-prev.endX > t.size*0.2 &&
			!strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(t.text, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
		prev = t
	}
	flush()
	return lines, nil
}

// normalize folds case and compatibility forms so that ligatures such as
// "ﬁrma" still match.
func normalize(s string) string {
	s = norm.NFKC.String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
}

func textHints(page int, lines []line) []models.TextHint {
	var hints []models.TextHint
	for _, l := range lines {
		folded := normalize(l.text)
		for _, kw := range Keywords {
			if strings.Contains(folded, kw) {
				hints = append(hints, models.TextHint{
					Keyword:    kw,
					Page:       page,
					Text:       truncate(l.text),
					X:          l.x,
					Y:          l.y,
					Confidence: ConfidenceMedium,
				})
			}
		}
	}
	for _, pattern := range LinePatterns {
		for _, l := range lines {
			if strings.Contains(l.text, pattern) {
				hints = append(hints, models.TextHint{
					Keyword:    LinePattern,
					Page:       page,
					Text:       pattern,
					X:          l.x,
					Y:          l.y,
					Confidence: ConfidenceLow,
				})
				break
			}
		}
	}
	return hints
}

func truncate(s string) string {
	if r := []rune(s); len(r) > maxHintText {
		return string(r[:maxHintText]) + "..."
	}
	return s
}
