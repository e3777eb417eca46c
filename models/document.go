package models

// Document is a source PDF fetched from a caller supplied link.
type Document struct {
	Name    string
	Content []byte
}

type UploadResult struct {
	Success   bool   `json:"success" yaml:"success"`
	Key       string `json:"key,omitempty" yaml:"key,omitempty"`
	SignedURL string `json:"signed_url,omitempty" yaml:"signed_url,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty" yaml:"expires_in,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

type AcroFormField struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	Page int    `json:"page,omitempty" yaml:"page,omitempty"`
}

// TextHint is a piece of page text suggesting a signature spot. X and Y are
// in PDF user space, origin at the bottom left of the page.
type TextHint struct {
	Keyword    string  `json:"keyword" yaml:"keyword"`
	Page       int     `json:"page" yaml:"page"`
	Text       string  `json:"text" yaml:"text"`
	X          float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y          float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Confidence string  `json:"confidence" yaml:"confidence"`
}

// PlacementHints describes where a document seems to expect a signature.
type PlacementHints struct {
	TotalPages       int             `json:"total_pages" yaml:"total_pages"`
	HasAcroFormField bool            `json:"has_acroform_fields" yaml:"has_acroform_fields"`
	AcroFormFields   []AcroFormField `json:"acroform_fields" yaml:"acroform_fields"`
	TextHints        []TextHint      `json:"text_hints" yaml:"text_hints"`
	Recommendation   string          `json:"recommendation" yaml:"recommendation"`
}
