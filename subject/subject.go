// Package subject parses directory-name style certificate subjects such as
// "GIVENNAME=John,SURNAME=Doe,CN=John Doe,DNQ=2024501530362,C=IT".
package subject

import (
	"strings"

	"github.com/hm-edu/remotesign/models"
)

type Key string

const (
	GivenName    Key = "GIVENNAME"
	Surname      Key = "SURNAME"
	CommonName   Key = "CN"
	DNQ          Key = "DNQ"
	SerialNumber Key = "SERIALNUMBER"
	Country      Key = "C"
)

// Keys lists the recognised attributes in the order Format writes them.
var Keys = []Key{GivenName, Surname, CommonName, DNQ, SerialNumber, Country}

var aliases = map[string]Key{
	"DNQUALIFIER":  DNQ,
	"2.5.4.46":     DNQ,
	"OID.2.5.4.46": DNQ,
}

// Attributes holds the recognised attributes of a subject. A key that is
// not in the map was not present in the subject.
type Attributes map[Key]string

func (a Attributes) Lookup(k Key) (string, bool) {
	v, ok := a[k]
	return v, ok
}

// Get returns the attribute value or an empty string when absent.
func (a Attributes) Get(k Key) string {
	return a[k]
}

func (a Attributes) Subject() models.SubjectAttributes {
	return models.SubjectAttributes{
		GivenName:    a[GivenName],
		Surname:      a[Surname],
		CommonName:   a[CommonName],
		DNQ:          a[DNQ],
		SerialNumber: a[SerialNumber],
		Country:      a[Country],
	}
}

type pair struct {
	key   string
	value string
}

type segment struct {
	text string
	eq   int
}

// Parse extracts the recognised attributes from s. The first occurrence of a
// key wins and keys with an empty value count as absent. Commas can be
// escaped with a backslash or protected by double quotes around the whole
// value; a quote inside a value is literal. A segment without "=" is treated
// as part of the previous value.
func Parse(s string) Attributes {
	var pairs []pair
	for _, seg := range split(s) {
		if seg.eq < 0 {
			if len(pairs) > 0 {
				pairs[len(pairs)-1].value += "," + seg.text
			}
			continue
		}
		pairs = append(pairs, pair{key: seg.text[:seg.eq], value: seg.text[seg.eq+1:]})
	}

	attrs := make(Attributes)
	for _, p := range pairs {
		key, ok := normalizeKey(p.key)
		if !ok {
			continue
		}
		value := strings.TrimSpace(p.value)
		if value == "" {
			continue
		}
		if _, seen := attrs[key]; seen {
			continue
		}
		attrs[key] = value
	}
	return attrs
}

func normalizeKey(k string) (Key, bool) {
	k = strings.ToUpper(strings.TrimSpace(k))
	if alias, ok := aliases[k]; ok {
		return alias, true
	}
	for _, known := range Keys {
		if Key(k) == known {
			return known, true
		}
	}
	return "", false
}

func split(s string) []segment {
	var (
		segments []segment
		b        strings.Builder
		eq       = -1
		escaped  bool
		quoted   bool
	)
	flush := func() {
		segments = append(segments, segment{text: b.String(), eq: eq})
		b.Reset()
		eq = -1
	}
	for _, r := range s {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"' && (quoted || valueEmpty(b.String(), eq)):
			quoted = !quoted
		case r == ',' && !quoted:
			flush()
		case r == '=' && !quoted && eq < 0:
			eq = b.Len()
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 || eq >= 0 {
		flush()
	}
	return segments
}

// valueEmpty reports whether text holds a key and "=" followed by nothing
// but spaces.
func valueEmpty(text string, eq int) bool {
	return eq >= 0 && strings.TrimSpace(text[eq+1:]) == ""
}

// Format renders attributes as a subject string that Parse reads back.
// Values are written trimmed and empty values are left out, as Parse drops
// surrounding spaces and treats empty values as absent.
func Format(a Attributes) string {
	parts := make([]string, 0, len(a))
	for _, k := range Keys {
		v := strings.TrimSpace(a[k])
		if v == "" {
			continue
		}
		parts = append(parts, string(k)+"="+escape(v))
	}
	return strings.Join(parts, ",")
}

var escaper = strings.NewReplacer(`\`, `\\`, `,`, `\,`, `"`, `\"`)

func escape(v string) string {
	return escaper.Replace(v)
}
