package signature

import (
	"context"
	"log/slog"

	"github.com/hm-edu/remotesign/catalog"
	"github.com/hm-edu/remotesign/client"
	"github.com/hm-edu/remotesign/models"
	"github.com/hm-edu/remotesign/placement"
)

// SignInput carries everything a sign call needs. Either AccessToken or
// Credential must be set.
type SignInput struct {
	AccessToken string
	Credential  *models.Credential

	CertificateID string
	TransactionID string
	SAT           string
	PIN           string
	DocumentURL   string

	PageSelector placement.PageSelector
	Position     placement.Position
	CustomRect   *models.StampRect
	// SignerName is shown in the stamp. When empty it is looked up from the
	// certificate list.
	SignerName string
	Invisible  bool
	// Upload overrides config.Config.UploadEnabled.
	Upload *bool
}

func (in SignInput) validate() error {
	fields := []field{
		{"certificate id", in.CertificateID},
		{"transaction id", in.TransactionID},
		{"sat", in.SAT},
		{"pin", in.PIN},
		{"document url", in.DocumentURL},
	}
	if in.AccessToken == "" {
		if in.Credential == nil {
			fields = append(fields, field{"access token or credentials", ""})
		} else {
			fields = append(fields, field{"username", in.Credential.Username}, field{"password", in.Credential.Password})
		}
	}
	return requireAll(fields...)
}

// Sign fetches the document, plans the stamps, has the service sign it and
// publishes the result. A failed upload does not fail the call; it is
// reported in the outcome together with the signed document.
func (o *Orchestrator) Sign(ctx context.Context, in SignInput) Result[*models.SignOutcome] {
	s := begin("sign", Authorized)
	if err := in.validate(); err != nil {
		return failed[*models.SignOutcome](s, err)
	}
	if in.Position == "" {
		in.Position = placement.BottomRight
	}
	if in.PageSelector == "" {
		in.PageSelector = placement.AllPages
	}
	var rect models.StampRect
	if !in.Invisible {
		var err error
		if rect, err = placement.Rectangle(in.Position, in.CustomRect); err != nil {
			return failed[*models.SignOutcome](s, err)
		}
	}

	token := in.AccessToken
	if token == "" {
		access, err := o.api.Authenticate(ctx, *in.Credential)
		if err != nil {
			return failed[*models.SignOutcome](s, err)
		}
		token = access.AccessToken
	}

	doc, err := o.api.FetchDocument(ctx, in.DocumentURL)
	if err != nil {
		return failed[*models.SignOutcome](s, err)
	}
	pages, err := o.pages.PageCount(doc.Content)
	if err != nil || pages < 1 {
		slog.Warn("Page count unavailable, assuming one page", slog.String("session", s.id), slog.Any("error", err))
		pages = 1
	}

	var fields []models.SignatureField
	if !in.Invisible {
		signer := in.SignerName
		if signer == "" {
			signer = o.signerName(ctx, token, in.CertificateID)
		}
		caption := placement.Caption(o.cfg.Stamp.CaptionPrefix, signer, o.now())
		appearance, err := placement.StampAppearance(caption, o.cfg.Stamp.FontSize, rect)
		if err != nil {
			return failed[*models.SignOutcome](s, err)
		}
		fields, err = placement.Plan(pages, in.PageSelector, in.Position, in.CustomRect, appearance)
		if err != nil {
			return failed[*models.SignOutcome](s, err)
		}
	}

	resp, err := o.api.Sign(ctx, client.SignCall{
		CertificateID: in.CertificateID,
		AccessToken:   token,
		SAT:           in.SAT,
		TransactionID: in.TransactionID,
		Request: models.SignRequest{
			ApplicationID: models.ApplicationID,
			PIN:           in.PIN,
			PadesSignatures: []models.PadesSignature{{
				SignatureLevel: models.SignatureLevel,
				RequestID:      in.TransactionID,
				Document: models.DocumentContent{
					Content:     encode(doc.Content),
					ContentType: models.ContentTypePDF,
					AttachName:  doc.Name,
				},
				Packaging:       models.PackagingMode,
				IsVisible:       len(fields) > 0,
				SignatureFields: fields,
			}},
		},
	})
	if err != nil {
		return failed[*models.SignOutcome](s, err)
	}
	artifact, err := client.SignedArtifact(resp, doc.Name)
	if err != nil {
		return failed[*models.SignOutcome](s, err)
	}
	s.advance(Signed)
	slog.Info("Document signed",
		slog.String("session", s.id),
		slog.String("document", artifact.AttachName),
		slog.Int("pages", pages),
		slog.Int("fields", len(fields)))

	outcome := &models.SignOutcome{
		RequestID:  in.TransactionID,
		AttachName: artifact.AttachName,
		Pages:      pages,
		Visible:    len(fields) > 0,
		Fields:     withoutImages(fields),
	}

	upload := o.cfg.UploadEnabled
	if in.Upload != nil {
		upload = *in.Upload
	}
	switch {
	case !upload:
		outcome.SignedDocument = encode(artifact.Content)
	case o.publisher == nil:
		outcome.SignedDocument = encode(artifact.Content)
		outcome.UploadError = ErrStorageNotConfigured.Error()
		slog.Warn("Signed document not published", slog.String("session", s.id), slog.String("kind", string(KindStorage)), slog.String("error", outcome.UploadError))
	default:
		result := o.publisher.Publish(ctx, artifact.Content, doc.Name)
		outcome.Upload = &result
		if !result.Success {
			outcome.SignedDocument = encode(artifact.Content)
			outcome.UploadError = result.Error
			slog.Warn("Signed document not published", slog.String("session", s.id), slog.String("kind", string(KindStorage)), slog.String("error", result.Error))
			break
		}
		s.advance(Published)
	}
	return OK(outcome)
}

// signerName resolves the name shown in the stamp from the certificate list:
// the certificate matching id, else the first one. It falls back to id.
func (o *Orchestrator) signerName(ctx context.Context, token, id string) string {
	list, err := o.certificates(ctx, token)
	if err != nil {
		slog.Warn("Could not resolve signer name", slog.String("certificate", id), slog.Any("error", err))
		return id
	}
	cert, ok := catalog.ByID(list, id)
	if !ok {
		if cert, err = catalog.First(list); err != nil {
			return id
		}
	}
	for _, name := range []string{
		cert.SubjectInfo.CommonName,
		joinName(cert.SubjectInfo.GivenName, cert.SubjectInfo.Surname),
	} {
		if name != "" {
			return name
		}
	}
	return id
}

func joinName(given, surname string) string {
	switch {
	case given == "":
		return surname
	case surname == "":
		return given
	default:
		return given + " " + surname
	}
}

func withoutImages(fields []models.SignatureField) []models.SignatureField {
	if len(fields) == 0 {
		return nil
	}
	out := make([]models.SignatureField, len(fields))
	for i, f := range fields {
		f.Image = ""
		out[i] = f
	}
	return out
}
