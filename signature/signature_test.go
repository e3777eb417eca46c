package signature

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hm-edu/remotesign/client"
	"github.com/hm-edu/remotesign/config"
	"github.com/hm-edu/remotesign/models"
	"github.com/hm-edu/remotesign/placement"
)

const fixtureSubject = "GIVENNAME=John,SURNAME=Doe,CN=John Doe,DNQ=2024501530362,C=IT"

var signedPDF = []byte("%PDF-1.7 signed")

func threePages(t *testing.T) []byte {
	t.Helper()
	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for i := 0; i < 3; i++ {
		doc.AddPage()
		doc.Text(72, 100, "Contract page")
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

// service fakes the authorization and signing endpoints and serves the
// document to sign.
type service struct {
	*httptest.Server
	mu          sync.Mutex
	hits        map[string]int
	signRequest models.SignRequest
	signHeaders http.Header
	certs       string
	signStatus  int
}

func newService(t *testing.T) *service {
	t.Helper()
	pdf := threePages(t)
	s := &service{
		hits:       map[string]int{},
		certs:      `[{"subject":"` + fixtureSubject + `","issuer":"Test CA","status":"ACTIVE","expirationDate":"2027-01-01"}]`,
		signStatus: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, r *http.Request) {
		s.hit("token")
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":  "access-token",
			"refreshToken": "refresh-token",
			"expiresIn":    3600,
			"scope":        "sign",
		})
	})
	mux.HandleFunc("GET /sign/certificates", func(w http.ResponseWriter, r *http.Request) {
		s.hit("certificates")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s.certs))
	})
	mux.HandleFunc("POST /sign/authenticators/SMSP/challenge", func(w http.ResponseWriter, r *http.Request) {
		s.hit("challenge")
		writeJSON(w, http.StatusOK, map[string]string{"transactionId": "tx-42"})
	})
	mux.HandleFunc("POST /sign/authenticators/{id}/SMSP/authorize", func(w http.ResponseWriter, r *http.Request) {
		s.hit("authorize")
		var req models.AuthorizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.OTP != "123456" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "wrong otp"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"sat": "sat-" + r.PathValue("id")})
	})
	mux.HandleFunc("POST /sign/certificates/{id}/sign", func(w http.ResponseWriter, r *http.Request) {
		s.hit("sign")
		s.mu.Lock()
		s.signHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&s.signRequest)
		s.mu.Unlock()
		if s.signStatus != http.StatusOK {
			writeJSON(w, s.signStatus, map[string]string{"message": "SAT already used"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"applicationId": "trusty",
			"signatureResult": []map[string]any{{
				"requestId": "tx-42",
				"isOk":      true,
				"signedDocument": map[string]string{
					"content":     base64.StdEncoding.EncodeToString(signedPDF),
					"contentType": "application/pdf",
					"attachName":  "Contratto firmato.pdf",
				},
			}},
		})
	})
	mux.HandleFunc("GET /docs/{name}", func(w http.ResponseWriter, r *http.Request) {
		s.hit("document")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *service) hit(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[name]++
}

func (s *service) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}

func (s *service) config() config.Config {
	cfg := config.Default()
	cfg.ClientID = "client"
	cfg.ClientSecret = "secret"
	cfg.AuthorizationAPI = s.URL + "/auth"
	cfg.SignatureAPI = s.URL + "/sign"
	cfg.Tenant = "acme"
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.HTTP.RetryCount = 0
	return cfg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fakePublisher struct {
	calls    int
	filename string
	data     []byte
	result   models.UploadResult
}

func (f *fakePublisher) Publish(_ context.Context, data []byte, filename string) models.UploadResult {
	f.calls++
	f.data = data
	f.filename = filename
	return f.result
}

var captionTime = regexp.MustCompile(`\d{2}/\d{2}/\d{4} \d{2}:\d{2}`)

func TestSigningSession(t *testing.T) {
	svc := newService(t)
	publisher := &fakePublisher{result: models.UploadResult{
		Success:   true,
		Key:       "signed_documents/20250314_092653_Contratto di lavoro.pdf",
		SignedURL: "https://bucket.example.com/signed",
		ExpiresIn: 3600,
	}}
	o := New(svc.config(), client.New(svc.config()), WithPublisher(publisher))
	ctx := context.Background()

	token, err := o.Authenticate(ctx, models.Credential{Username: "john", Password: "pw"}).Unwrap()
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.NotEmpty(t, token.RefreshToken)

	cert, err := o.FirstCertificate(ctx, token.AccessToken).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "2024501530362", cert.CertificateID)
	assert.Equal(t, "John", cert.SubjectInfo.GivenName)

	tx, err := o.RequestChallenge(ctx, token.AccessToken).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "tx-42", tx.TransactionID)

	sat, err := o.Authorize(ctx, token.AccessToken, client.AuthorizeInput{
		CertificateID: cert.CertificateID,
		TransactionID: tx.TransactionID,
		OTP:           "123456",
		PIN:           "0000",
	}).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "sat-2024501530362", sat.SAT)

	outcome, err := o.Sign(ctx, SignInput{
		AccessToken:   token.AccessToken,
		CertificateID: cert.CertificateID,
		TransactionID: tx.TransactionID,
		SAT:           sat.SAT,
		PIN:           "0000",
		DocumentURL:   svc.URL + "/docs/Contratto%20di%20lavoro.pdf?token=abc",
		PageSelector:  placement.AllPages,
		Position:      placement.BottomRight,
	}).Unwrap()
	require.NoError(t, err)

	assert.Equal(t, "sat-2024501530362", svc.signHeaders.Get("Infocert-SAT"))
	assert.Equal(t, "tx-42", svc.signHeaders.Get("Transaction-Id"))
	assert.Equal(t, "acme", svc.signHeaders.Get("tenant"))

	req := svc.signRequest
	assert.Equal(t, "trusty", req.ApplicationID)
	assert.Equal(t, "0000", req.PIN)
	require.Len(t, req.PadesSignatures, 1)
	pades := req.PadesSignatures[0]
	assert.Equal(t, "BASELINE-B", pades.SignatureLevel)
	assert.Equal(t, "ENVELOPED", pades.Packaging)
	assert.Equal(t, "tx-42", pades.RequestID)
	assert.Equal(t, "Contratto di lavoro.pdf", pades.Document.AttachName)
	assert.Equal(t, "application/pdf", pades.Document.ContentType)
	assert.True(t, pades.IsVisible)

	require.Len(t, pades.SignatureFields, 3)
	for i, f := range pades.SignatureFields {
		assert.Equal(t, i+1, f.Page)
		assert.Equal(t, models.StampRect{LLX: 500, LLY: 15, URX: 580, URY: 45}, f.Rect())
		assert.Equal(t, pades.SignatureFields[0].Text, f.Text)
		assert.Contains(t, f.Text, "John Doe")
		assert.Regexp(t, captionTime, f.Text)
		assert.NotEmpty(t, f.Image)
		assert.Equal(t, 8, f.FontSize)
	}

	assert.Equal(t, 3, outcome.Pages)
	assert.True(t, outcome.Visible)
	assert.Equal(t, "Contratto firmato.pdf", outcome.AttachName)
	require.Len(t, outcome.Fields, 3)
	assert.Empty(t, outcome.Fields[0].Image)
	require.NotNil(t, outcome.Upload)
	assert.True(t, outcome.Upload.Success)
	assert.Empty(t, outcome.UploadError)
	assert.Empty(t, outcome.SignedDocument)

	assert.Equal(t, 1, publisher.calls)
	assert.Equal(t, "Contratto di lavoro.pdf", publisher.filename)
	assert.Equal(t, signedPDF, publisher.data)
}

func baseInput(svc *service) SignInput {
	return SignInput{
		AccessToken:   "access-token",
		CertificateID: "2024501530362",
		TransactionID: "tx-42",
		SAT:           "sat",
		PIN:           "0000",
		DocumentURL:   svc.URL + "/docs/contract.pdf",
	}
}

func TestSignWithCredentials(t *testing.T) {
	svc := newService(t)
	o := New(svc.config(), client.New(svc.config()), WithPublisher(&fakePublisher{result: models.UploadResult{Success: true}}))

	in := baseInput(svc)
	in.AccessToken = ""
	in.Credential = &models.Credential{Username: "john", Password: "pw"}
	in.PageSelector = placement.LastPage
	in.SignerName = "Dott. John Doe"

	outcome, err := o.Sign(context.Background(), in).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 1, svc.count("token"))
	assert.Zero(t, svc.count("certificates"))
	assert.Equal(t, "Bearer access-token", svc.signHeaders.Get("Authorization"))
	require.Len(t, outcome.Fields, 1)
	assert.Equal(t, 3, outcome.Fields[0].Page)
	assert.Contains(t, outcome.Fields[0].Text, "Dott. John Doe")
}

func TestSignUploadFailureKeepsDocument(t *testing.T) {
	svc := newService(t)
	publisher := &fakePublisher{result: models.UploadResult{Success: false, Error: "upload failed: AccessDenied: denied"}}
	o := New(svc.config(), client.New(svc.config()), WithPublisher(publisher))

	r := o.Sign(context.Background(), baseInput(svc))
	require.True(t, r.IsOK())
	assert.Equal(t, "upload failed: AccessDenied: denied", r.Value.UploadError)
	assert.False(t, r.Value.Upload.Success)
	assert.Equal(t, base64.StdEncoding.EncodeToString(signedPDF), r.Value.SignedDocument)
}

func TestSignUploadDisabled(t *testing.T) {
	svc := newService(t)
	publisher := &fakePublisher{}
	o := New(svc.config(), client.New(svc.config()), WithPublisher(publisher))

	in := baseInput(svc)
	upload := false
	in.Upload = &upload

	outcome, err := o.Sign(context.Background(), in).Unwrap()
	require.NoError(t, err)
	assert.Zero(t, publisher.calls)
	assert.Nil(t, outcome.Upload)
	assert.Empty(t, outcome.UploadError)
	assert.Equal(t, base64.StdEncoding.EncodeToString(signedPDF), outcome.SignedDocument)
}

func TestSignWithoutPublisher(t *testing.T) {
	svc := newService(t)
	o := New(svc.config(), client.New(svc.config()))

	outcome, err := o.Sign(context.Background(), baseInput(svc)).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, ErrStorageNotConfigured.Error(), outcome.UploadError)
	assert.NotEmpty(t, outcome.SignedDocument)
}

func TestSignInvisible(t *testing.T) {
	svc := newService(t)
	o := New(svc.config(), client.New(svc.config()), WithPublisher(&fakePublisher{result: models.UploadResult{Success: true}}))

	in := baseInput(svc)
	in.Invisible = true
	in.Position = placement.Custom

	outcome, err := o.Sign(context.Background(), in).Unwrap()
	require.NoError(t, err)
	assert.False(t, outcome.Visible)
	assert.Empty(t, outcome.Fields)
	assert.False(t, svc.signRequest.PadesSignatures[0].IsVisible)
	assert.Empty(t, svc.signRequest.PadesSignatures[0].SignatureFields)
}

func TestSignCustomPosition(t *testing.T) {
	svc := newService(t)
	o := New(svc.config(), client.New(svc.config()), WithPublisher(&fakePublisher{result: models.UploadResult{Success: true}}))

	in := baseInput(svc)
	in.PageSelector = placement.FirstPage
	in.Position = placement.Custom
	in.CustomRect = &models.StampRect{LLX: 250, LLY: 400, URX: 330, URY: 430}

	outcome, err := o.Sign(context.Background(), in).Unwrap()
	require.NoError(t, err)
	require.Len(t, outcome.Fields, 1)
	assert.Equal(t, *in.CustomRect, outcome.Fields[0].Rect())
}

func TestSignCustomWithoutRectangle(t *testing.T) {
	svc := newService(t)
	o := New(svc.config(), client.New(svc.config()))

	in := baseInput(svc)
	in.Position = placement.Custom

	r := o.Sign(context.Background(), in)
	require.False(t, r.IsOK())
	assert.Equal(t, KindConfiguration, r.Failure.Kind)
	assert.Zero(t, svc.count("document"))
	assert.Zero(t, svc.count("sign"))
}

func TestSignMissingInput(t *testing.T) {
	o := New(config.Default(), client.New(config.Default()))

	r := o.Sign(context.Background(), SignInput{CertificateID: "c"})
	require.False(t, r.IsOK())
	assert.Equal(t, KindConfiguration, r.Failure.Kind)
	assert.Contains(t, r.Failure.Message, "access token or credentials")
	assert.Contains(t, r.Failure.Message, "sat")
}

func TestSignRejected(t *testing.T) {
	svc := newService(t)
	svc.signStatus = http.StatusForbidden
	o := New(svc.config(), client.New(svc.config()))

	r := o.Sign(context.Background(), baseInput(svc))
	require.False(t, r.IsOK())
	assert.Equal(t, KindUpstream, r.Failure.Kind)
	assert.Contains(t, r.Failure.Message, "signing failed")
	assert.Contains(t, r.Failure.Message, "SAT already used")
}

type stubPages struct{ n int }

func (s stubPages) PageCount([]byte) (int, error) { return s.n, nil }

func TestSignUsesPageCounter(t *testing.T) {
	svc := newService(t)
	o := New(svc.config(), client.New(svc.config()),
		WithPageCounter(stubPages{n: 7}),
		WithPublisher(&fakePublisher{result: models.UploadResult{Success: true}}))

	outcome, err := o.Sign(context.Background(), baseInput(svc)).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 7, outcome.Pages)
	assert.Len(t, outcome.Fields, 7)
}

func TestSignerNameFallsBackToFirstCertificate(t *testing.T) {
	svc := newService(t)
	at := time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)
	o := New(svc.config(), client.New(svc.config()),
		WithClock(func() time.Time { return at }),
		WithPublisher(&fakePublisher{result: models.UploadResult{Success: true}}))

	in := baseInput(svc)
	in.CertificateID = "unknown"
	in.PageSelector = placement.FirstPage

	outcome, err := o.Sign(context.Background(), in).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "Digitally signed by John Doe\n14/03/2025 09:26", outcome.Fields[0].Text)
}

func TestAuthorizeWrongOTP(t *testing.T) {
	svc := newService(t)
	o := New(svc.config(), client.New(svc.config()))

	r := o.Authorize(context.Background(), "access-token", client.AuthorizeInput{
		CertificateID: "c", TransactionID: "tx", OTP: "000000", PIN: "0000",
	})
	require.False(t, r.IsOK())
	assert.Equal(t, KindUpstream, r.Failure.Kind)
	assert.Contains(t, r.Failure.Message, "wrong otp")
}

func TestAuthorizeMissingInput(t *testing.T) {
	o := New(config.Default(), client.New(config.Default()))
	r := o.Authorize(context.Background(), "token", client.AuthorizeInput{CertificateID: "c"})
	require.False(t, r.IsOK())
	assert.Equal(t, KindConfiguration, r.Failure.Kind)
	assert.Equal(t, "missing required input: transaction id, otp, pin", r.Failure.Message)
}

func TestFirstCertificateEmpty(t *testing.T) {
	svc := newService(t)
	svc.certs = `[]`
	o := New(svc.config(), client.New(svc.config()))

	r := o.FirstCertificate(context.Background(), "access-token")
	require.False(t, r.IsOK())
	assert.Equal(t, KindLocal, r.Failure.Kind)
}

func TestCertificatesTransformFailure(t *testing.T) {
	svc := newService(t)
	svc.certs = `[{"subject":42}]`
	o := New(svc.config(), client.New(svc.config()))

	r := o.Certificates(context.Background(), "access-token")
	require.False(t, r.IsOK())
	assert.Equal(t, KindLocal, r.Failure.Kind)
	assert.JSONEq(t, svc.certs, string(r.Failure.Original))

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"original_data":[{"subject":42}]`)
}

func TestCertificatesPassThrough(t *testing.T) {
	svc := newService(t)
	svc.certs = `{"message":"maintenance"}`
	o := New(svc.config(), client.New(svc.config()))

	list, err := o.Certificates(context.Background(), "access-token").Unwrap()
	require.NoError(t, err)
	assert.Empty(t, list.Certificates)
	assert.JSONEq(t, svc.certs, string(list.Original))
}

func TestAnalyzeDocument(t *testing.T) {
	svc := newService(t)
	o := New(svc.config(), client.New(svc.config()))

	hints, err := o.AnalyzeDocument(context.Background(), svc.URL+"/docs/contract.pdf").Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 3, hints.TotalPages)
	assert.NotEmpty(t, hints.Recommendation)
}

func TestNetworkFailure(t *testing.T) {
	cfg := config.Default()
	cfg.AuthorizationAPI = "http://127.0.0.1:1"
	cfg.HTTP.RetryCount = 0
	o := New(cfg, client.New(cfg))

	r := o.Authenticate(context.Background(), models.Credential{Username: "u", Password: "p"})
	require.False(t, r.IsOK())
	assert.Equal(t, KindNetwork, r.Failure.Kind)
	assert.Contains(t, r.Failure.Message, "authentication failed")
}
