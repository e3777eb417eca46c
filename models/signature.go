package models

const (
	ApplicationID   = "trusty"
	SignatureLevel  = "BASELINE-B"
	PackagingMode   = "ENVELOPED"
	ContentTypePDF  = "application/pdf"
	DefaultDocument = "document.pdf"
)

// StampRect is a rectangle in PDF points, origin at the lower left corner.
type StampRect struct {
	LLX int `json:"llx" yaml:"llx"`
	LLY int `json:"lly" yaml:"lly"`
	URX int `json:"urx" yaml:"urx"`
	URY int `json:"ury" yaml:"ury"`
}

func (r StampRect) Width() int  { return r.URX - r.LLX }
func (r StampRect) Height() int { return r.URY - r.LLY }

type SignatureField struct {
	Page     int    `json:"page" yaml:"page"`
	LLX      int    `json:"llx" yaml:"llx"`
	LLY      int    `json:"lly" yaml:"lly"`
	URX      int    `json:"urx" yaml:"urx"`
	URY      int    `json:"ury" yaml:"ury"`
	Image    string `json:"image,omitempty" yaml:"-"`
	Text     string `json:"text" yaml:"text"`
	FontSize int    `json:"fontSize" yaml:"fontSize"`
}

func (f SignatureField) Rect() StampRect {
	return StampRect{LLX: f.LLX, LLY: f.LLY, URX: f.URX, URY: f.URY}
}

type DocumentContent struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
	AttachName  string `json:"attachName"`
}

type PadesSignature struct {
	SignatureLevel  string           `json:"signatureLevel"`
	RequestID       string           `json:"requestId"`
	Document        DocumentContent  `json:"document"`
	Packaging       string           `json:"packaging"`
	IsVisible       bool             `json:"isVisible"`
	SignatureFields []SignatureField `json:"signatureFields,omitempty"`
}

type SignRequest struct {
	ApplicationID   string           `json:"applicationId"`
	PIN             string           `json:"pin"`
	PadesSignatures []PadesSignature `json:"padesSignatures"`
}

type SignResponse struct {
	ApplicationID   string            `json:"applicationId"`
	SignatureResult []SignatureResult `json:"signatureResult"`
}

type SignatureResult struct {
	RequestID      string           `json:"requestId"`
	IsOk           bool             `json:"isOk"`
	SignedDocument *DocumentContent `json:"signedDocument"`
}

// SignedArtifact is the decoded signed PDF.
type SignedArtifact struct {
	Content    []byte
	AttachName string
}

// SignOutcome is what the host receives once a document has been signed.
type SignOutcome struct {
	RequestID      string           `json:"requestId" yaml:"requestId"`
	AttachName     string           `json:"attachName" yaml:"attachName"`
	Pages          int              `json:"pages" yaml:"pages"`
	Visible        bool             `json:"isVisible" yaml:"isVisible"`
	Fields         []SignatureField `json:"signatureFields,omitempty" yaml:"signatureFields,omitempty"`
	SignedDocument string           `json:"signedDocument,omitempty" yaml:"-"`
	Upload         *UploadResult    `json:"upload,omitempty" yaml:"upload,omitempty"`
	UploadError    string           `json:"upload_error,omitempty" yaml:"upload_error,omitempty"`
}
