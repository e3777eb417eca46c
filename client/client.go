package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/hm-edu/remotesign/config"
	"github.com/hm-edu/remotesign/models"
)

const (
	TokenPath        = "/token"
	CertificatesPath = "/certificates"
	ChallengePath    = "/authenticators/SMSP/challenge"
	AuthorizePath    = "/authenticators/{certificateId}/SMSP/authorize"
	SignPath         = "/certificates/{certificateId}/sign"

	ApplicationJson = "application/json"

	HeaderTenant        = "tenant"
	HeaderSAT           = "Infocert-SAT"
	HeaderTransactionID = "Transaction-Id"
)

// Client talks to the authorization and remote signature services. It keeps
// no per-session state and is safe for concurrent use.
type Client struct {
	client     *resty.Client
	cfg        config.Config
	debug      bool
	httpClient *http.Client
}

type Option func(*Client)

func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(cfg config.Config, options ...Option) *Client {
	c := &Client{cfg: cfg}
	for _, option := range options {
		option(c)
	}
	var r *resty.Client
	if c.httpClient != nil {
		r = resty.NewWithClient(c.httpClient)
	} else {
		r = resty.New()
	}
	r.SetTimeout(cfg.HTTP.Timeout).
		SetRetryCount(cfg.HTTP.RetryCount).
		SetRetryWaitTime(cfg.HTTP.RetryWait).
		SetRetryMaxWaitTime(cfg.HTTP.RetryMaxWait).
		AddRetryCondition(retryOnTransportError).
		SetDebug(c.debug)
	c.client = r
	return c
}

// retryOnTransportError retries connection level failures only. Rejections
// by the service are the caller's problem and are never retried.
func retryOnTransportError(_ *resty.Response, err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func join(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}

func (c *Client) authorized(ctx context.Context, token string) *resty.Request {
	return c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader(HeaderTenant, c.cfg.Tenant)
}

func (c *Client) execute(op Op, req *resty.Request, method, target string, out any) (*resty.Response, error) {
	resp, err := req.Execute(method, target)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	if !resp.IsSuccess() {
		return resp, &Error{
			Op:         op,
			Kind:       KindUpstream,
			StatusCode: resp.StatusCode(),
			Err:        &UnexpectedResponseCodeError{Code: resp.StatusCode(), Body: resp.Body()},
		}
	}
	if out == nil {
		return resp, nil
	}
	if ct := resp.Header().Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), ApplicationJson) {
		return resp, &Error{
			Op:         op,
			Kind:       KindParse,
			StatusCode: resp.StatusCode(),
			Err:        &UnexpectedResponseContentTypeError{ContentType: ct, Body: resp.Body()},
		}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return resp, &Error{Op: op, Kind: KindParse, StatusCode: resp.StatusCode(), Err: err}
	}
	return resp, nil
}

// Authenticate exchanges user credentials for an access token using the
// OAuth2 password grant.
func (c *Client) Authenticate(ctx context.Context, cred models.Credential) (*models.AccessToken, error) {
	var token models.TokenResponse
	_, err := c.execute(OpAuthenticate, c.client.R().
		SetContext(ctx).
		SetHeader("Accept", ApplicationJson).
		SetFormData(map[string]string{
			"grant_type":    "password",
			"client_id":     c.cfg.ClientID,
			"client_secret": c.cfg.ClientSecret,
			"username":      cred.Username,
			"password":      cred.Password,
		}), resty.MethodPost, join(c.cfg.AuthorizationAPI, TokenPath), &token)
	if err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, &Error{Op: OpAuthenticate, Kind: KindParse, Err: errors.New("response has no accessToken")}
	}
	slog.Info("Authenticated", slog.String("user", cred.Username), slog.String("scope", token.Scope))
	logTokenExpiry(token.AccessToken)
	return &models.AccessToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    token.ExpiresIn,
		Scope:        token.Scope,
	}, nil
}

func logTokenExpiry(token string) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		slog.Debug("Access token is opaque, expiry unknown")
		return
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	slog.Info("Token expires", slog.Time("exp", exp.Time))
}

// Certificates returns the raw certificate list of the authenticated user.
func (c *Client) Certificates(ctx context.Context, token string) (json.RawMessage, error) {
	var raw json.RawMessage
	_, err := c.execute(OpCertificates, c.authorized(ctx, token).
		SetHeader("Accept", ApplicationJson),
		resty.MethodGet, join(c.cfg.SignatureAPI, CertificatesPath), &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// RequestChallenge makes the service send an OTP by SMS. Every call starts a
// new, unrelated transaction.
func (c *Client) RequestChallenge(ctx context.Context, token string) (*models.Transaction, error) {
	var raw json.RawMessage
	_, err := c.execute(OpChallenge, c.authorized(ctx, token).
		SetHeader("Content-Type", ApplicationJson).
		SetBody(map[string]any{}),
		resty.MethodPost, join(c.cfg.SignatureAPI, ChallengePath), &raw)
	if err != nil {
		return nil, err
	}
	var challenge models.ChallengeResponse
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return nil, &Error{Op: OpChallenge, Kind: KindParse, Err: err}
	}
	id := challenge.TransactionID
	if id == "" {
		id = challenge.ID
	}
	if id == "" {
		return nil, &Error{Op: OpChallenge, Kind: KindParse, Err: errors.New("response has no transactionId")}
	}
	slog.Info("SMS challenge issued", slog.String("transaction", id))
	return &models.Transaction{TransactionID: id, Raw: raw}, nil
}

type AuthorizeInput struct {
	CertificateID string
	TransactionID string
	OTP           string
	PIN           string
}

// Authorize verifies OTP and PIN and returns the signature authorization
// token for the transaction.
func (c *Client) Authorize(ctx context.Context, token string, in AuthorizeInput) (*models.SignatureAuthorization, error) {
	var result models.AuthorizeResponse
	_, err := c.execute(OpAuthorize, c.authorized(ctx, token).
		SetHeader("Content-Type", ApplicationJson).
		SetPathParam("certificateId", in.CertificateID).
		SetBody(models.AuthorizeRequest{
			SignaturesNumber: c.cfg.SignaturesNumber,
			TransactionID:    in.TransactionID,
			OTP:              in.OTP,
			PIN:              in.PIN,
		}),
		resty.MethodPost, join(c.cfg.SignatureAPI, AuthorizePath), &result)
	if err != nil {
		return nil, err
	}
	if result.SAT == "" {
		return nil, &Error{Op: OpAuthorize, Kind: KindParse, Err: errors.New("response has no sat")}
	}
	slog.Info("Signature authorized",
		slog.String("certificate", in.CertificateID),
		slog.String("transaction", in.TransactionID),
		slog.Int("signatures", c.cfg.SignaturesNumber))
	return &models.SignatureAuthorization{SAT: result.SAT}, nil
}

// SignCall carries everything the sign endpoint needs besides the body.
type SignCall struct {
	CertificateID string
	AccessToken   string
	SAT           string
	TransactionID string
	Request       models.SignRequest
}

func (c *Client) Sign(ctx context.Context, call SignCall) (*models.SignResponse, error) {
	var result models.SignResponse
	_, err := c.execute(OpSign, c.authorized(ctx, call.AccessToken).
		SetHeader("Content-Type", ApplicationJson).
		SetHeader(HeaderSAT, call.SAT).
		SetHeader(HeaderTransactionID, call.TransactionID).
		SetPathParam("certificateId", call.CertificateID).
		SetBody(call.Request),
		resty.MethodPost, join(c.cfg.SignatureAPI, SignPath), &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SignedArtifact decodes the first signed document of a sign response.
func SignedArtifact(resp *models.SignResponse, fallbackName string) (*models.SignedArtifact, error) {
	if resp == nil || len(resp.SignatureResult) == 0 {
		return nil, &Error{Op: OpSign, Kind: KindParse, Err: errors.New("response has no signatureResult")}
	}
	doc := resp.SignatureResult[0].SignedDocument
	if doc == nil || doc.Content == "" {
		return nil, &Error{Op: OpSign, Kind: KindParse, Err: errors.New("response has no signed document content")}
	}
	content, err := base64.StdEncoding.DecodeString(doc.Content)
	if err != nil {
		return nil, &Error{Op: OpSign, Kind: KindParse, Err: err}
	}
	name := doc.AttachName
	if name == "" {
		name = fallbackName
	}
	return &models.SignedArtifact{Content: content, AttachName: name}, nil
}
