// Package signature drives a remote signing session: token, certificate,
// SMS challenge, authorization, signing and publishing. Every operation is
// independent; the caller passes forward what earlier steps returned.
package signature

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hm-edu/remotesign/catalog"
	"github.com/hm-edu/remotesign/client"
	"github.com/hm-edu/remotesign/config"
	"github.com/hm-edu/remotesign/models"
	"github.com/hm-edu/remotesign/pdfinfo"
)

// API is the remote signing service.
type API interface {
	Authenticate(ctx context.Context, cred models.Credential) (*models.AccessToken, error)
	Certificates(ctx context.Context, token string) (json.RawMessage, error)
	RequestChallenge(ctx context.Context, token string) (*models.Transaction, error)
	Authorize(ctx context.Context, token string, in client.AuthorizeInput) (*models.SignatureAuthorization, error)
	Sign(ctx context.Context, call client.SignCall) (*models.SignResponse, error)
	FetchDocument(ctx context.Context, link string) (*models.Document, error)
}

type Publisher interface {
	Publish(ctx context.Context, data []byte, filename string) models.UploadResult
}

var ErrStorageNotConfigured = errors.New("object storage is not configured")

type Orchestrator struct {
	cfg       config.Config
	api       API
	publisher Publisher
	pages     pdfinfo.PageCounter
	now       func() time.Time
}

type Option func(*Orchestrator)

func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

func WithPageCounter(c pdfinfo.PageCounter) Option {
	return func(o *Orchestrator) {
		o.pages = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func New(cfg config.Config, api API, options ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:   cfg,
		api:   api,
		pages: pdfinfo.DefaultCounter(),
		now:   time.Now,
	}
	for _, option := range options {
		option(o)
	}
	return o
}

func (o *Orchestrator) Authenticate(ctx context.Context, cred models.Credential) Result[*models.AccessToken] {
	s := begin("authenticate", Unauthenticated)
	if err := requireAll(field{"username", cred.Username}, field{"password", cred.Password}); err != nil {
		return failed[*models.AccessToken](s, err)
	}
	token, err := o.api.Authenticate(ctx, cred)
	if err != nil {
		return failed[*models.AccessToken](s, err)
	}
	s.advance(Authenticated)
	return OK(token)
}

func (o *Orchestrator) certificates(ctx context.Context, token string) (*models.CertificateList, error) {
	raw, err := o.api.Certificates(ctx, token)
	if err != nil {
		return nil, err
	}
	return catalog.Normalize(raw)
}

// Certificates returns every certificate of the user.
func (o *Orchestrator) Certificates(ctx context.Context, token string) Result[*models.CertificateList] {
	s := begin("certificates", Authenticated)
	if token == "" {
		return failed[*models.CertificateList](s, missing("access token"))
	}
	list, err := o.certificates(ctx, token)
	if err != nil {
		return failed[*models.CertificateList](s, err)
	}
	slog.Info("Certificates listed", slog.String("session", s.id), slog.Int("count", list.TotalCount))
	return OK(list)
}

// FirstCertificate returns the first certificate of the user. An empty list
// is a failure.
func (o *Orchestrator) FirstCertificate(ctx context.Context, token string) Result[models.Certificate] {
	s := begin("first-certificate", Authenticated)
	if token == "" {
		return failed[models.Certificate](s, missing("access token"))
	}
	list, err := o.certificates(ctx, token)
	if err != nil {
		return failed[models.Certificate](s, err)
	}
	cert, err := catalog.First(list)
	if err != nil {
		return failed[models.Certificate](s, err)
	}
	return OK(cert)
}

func (o *Orchestrator) RequestChallenge(ctx context.Context, token string) Result[*models.Transaction] {
	s := begin("challenge", Authenticated)
	if token == "" {
		return failed[*models.Transaction](s, missing("access token"))
	}
	tx, err := o.api.RequestChallenge(ctx, token)
	if err != nil {
		return failed[*models.Transaction](s, err)
	}
	s.advance(ChallengeIssued)
	return OK(tx)
}

func (o *Orchestrator) Authorize(ctx context.Context, token string, in client.AuthorizeInput) Result[*models.SignatureAuthorization] {
	s := begin("authorize", ChallengeIssued)
	if err := requireAll(
		field{"access token", token},
		field{"certificate id", in.CertificateID},
		field{"transaction id", in.TransactionID},
		field{"otp", in.OTP},
		field{"pin", in.PIN},
	); err != nil {
		return failed[*models.SignatureAuthorization](s, err)
	}
	sat, err := o.api.Authorize(ctx, token, in)
	if err != nil {
		return failed[*models.SignatureAuthorization](s, err)
	}
	s.advance(Authorized)
	return OK(sat)
}

// AnalyzeDocument fetches a document and reports where it seems to expect a
// signature.
func (o *Orchestrator) AnalyzeDocument(ctx context.Context, link string) Result[*models.PlacementHints] {
	s := begin("analyze", Unauthenticated)
	if link == "" {
		return failed[*models.PlacementHints](s, missing("document url"))
	}
	doc, err := o.api.FetchDocument(ctx, link)
	if err != nil {
		return failed[*models.PlacementHints](s, err)
	}
	hints, err := pdfinfo.Analyze(doc.Content)
	if err != nil {
		return failed[*models.PlacementHints](s, err)
	}
	return OK(hints)
}

type field struct {
	name  string
	value string
}

func requireAll(fields ...field) error {
	var names []string
	for _, f := range fields {
		if f.value == "" {
			names = append(names, f.name)
		}
	}
	if len(names) > 0 {
		return missing(names...)
	}
	return nil
}

func encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
