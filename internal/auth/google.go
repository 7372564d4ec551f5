package auth

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/aira-metrics/dashboard/internal/cache"
	"github.com/aira-metrics/dashboard/internal/logger"
)

// DefaultCertsURL serves Google's current ID token signing keys.
const DefaultCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

const (
	defaultKeysTTL = time.Hour
	clockSkew      = 30 * time.Second
	keysCacheKey   = "google:jwks"
)

var issuers = []string{"accounts.google.com", "https://accounts.google.com"}

var (
	ErrMalformedToken   = errors.New("malformed id token")
	ErrUnsupportedAlg   = errors.New("unsupported signing algorithm")
	ErrUnknownKey       = errors.New("id token signed with an unknown key")
	ErrInvalidSignature = errors.New("invalid id token signature")
	ErrTokenExpired     = errors.New("id token expired")
	ErrInvalidIssuer    = errors.New("id token issuer is not Google")
	ErrInvalidAudience  = errors.New("id token was issued for another client")
	ErrEmailNotVerified = errors.New("email address is not verified")
	ErrDomainNotAllowed = errors.New("account domain is not allowed")
)

// Identity is the verified account behind an ID token.
type Identity struct {
	Subject      string `json:"sub"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Picture      string `json:"picture,omitempty"`
	HostedDomain string `json:"hd,omitempty"`
}

// Config configures a GoogleVerifier.
type Config struct {
	ClientID string
	// AllowedDomains limits sign-in to these Workspace or email domains.
	// Empty allows any verified Google account.
	AllowedDomains []string
	CertsURL       string
	Timeout        time.Duration
}

// GoogleVerifier verifies Google Sign-In ID tokens.
type GoogleVerifier struct {
	cfg  Config
	http *fasthttp.Client
	keys *cache.LRU[map[string]*rsa.PublicKey]
	now  func() time.Time
}

// NewGoogleVerifier creates a verifier for tokens issued to cfg.ClientID.
func NewGoogleVerifier(cfg Config) *GoogleVerifier {
	if cfg.CertsURL == "" {
		cfg.CertsURL = DefaultCertsURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	for i, d := range cfg.AllowedDomains {
		cfg.AllowedDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}
	return &GoogleVerifier{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:         "aira-dashboard",
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		},
		keys: cache.NewLRU[map[string]*rsa.PublicKey](cache.Config{MaxSize: 1, DefaultTTL: defaultKeysTTL}),
		now:  time.Now,
	}
}

// Close releases the key cache.
func (v *GoogleVerifier) Close() error {
	return v.keys.Close()
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

type tokenClaims struct {
	Issuer        string          `json:"iss"`
	Audience      json.RawMessage `json:"aud"`
	ExpiresAt     int64           `json:"exp"`
	IssuedAt      int64           `json:"iat"`
	Subject       string          `json:"sub"`
	Email         string          `json:"email"`
	EmailVerified json.RawMessage `json:"email_verified"`
	Name          string          `json:"name"`
	Picture       string          `json:"picture"`
	HostedDomain  string          `json:"hd"`
}

// Verify checks the token's signature and claims and returns the identity
// it asserts.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}

	var header tokenHeader
	if err := decodeSegment(parts[0], &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	if header.Alg != "RS256" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlg, header.Alg)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformedToken, err)
	}

	key, err := v.key(ctx, header.Kid)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig); err != nil {
		return nil, ErrInvalidSignature
	}

	var claims tokenClaims
	if err := decodeSegment(parts[1], &claims); err != nil {
		return nil, fmt.Errorf("%w: claims: %v", ErrMalformedToken, err)
	}
	if err := v.checkClaims(claims); err != nil {
		return nil, err
	}

	return &Identity{
		Subject:      claims.Subject,
		Email:        claims.Email,
		Name:         claims.Name,
		Picture:      claims.Picture,
		HostedDomain: claims.HostedDomain,
	}, nil
}

func (v *GoogleVerifier) checkClaims(c tokenClaims) error {
	if !contains(issuers, c.Issuer) {
		return fmt.Errorf("%w: %q", ErrInvalidIssuer, c.Issuer)
	}
	if !contains(audiences(c.Audience), v.cfg.ClientID) {
		return ErrInvalidAudience
	}
	if c.ExpiresAt == 0 || v.now().After(time.Unix(c.ExpiresAt, 0).Add(clockSkew)) {
		return ErrTokenExpired
	}
	if c.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	if len(v.cfg.AllowedDomains) == 0 {
		return nil
	}
	if !truthy(c.EmailVerified) {
		return ErrEmailNotVerified
	}
	domain := strings.ToLower(c.HostedDomain)
	if domain == "" {
		if at := strings.LastIndexByte(c.Email, '@'); at >= 0 {
			domain = strings.ToLower(c.Email[at+1:])
		}
	}
	if !contains(v.cfg.AllowedDomains, domain) {
		return fmt.Errorf("%w: %q", ErrDomainNotAllowed, domain)
	}
	return nil
}

// key returns the public key for kid, refetching the key set once when kid
// is not in the cached one.
func (v *GoogleVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if keys, ok := v.keys.Get(keysCacheKey); ok {
		if k, ok := keys[kid]; ok {
			return k, nil
		}
	}

	keys, ttl, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch signing keys: %w", err)
	}
	v.keys.SetWithTTL(keysCacheKey, keys, ttl)

	if k, ok := keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type certsResponse struct {
	status int
	body   []byte
	maxAge time.Duration
	err    error
}

func (v *GoogleVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	done := make(chan certsResponse, 1)
	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(v.cfg.CertsURL)
		req.Header.SetMethod(fasthttp.MethodGet)
		if err := v.http.DoTimeout(req, resp, v.cfg.Timeout); err != nil {
			done <- certsResponse{err: err}
			return
		}
		done <- certsResponse{
			status: resp.StatusCode(),
			body:   append([]byte(nil), resp.Body()...),
			maxAge: maxAge(string(resp.Header.Peek(fasthttp.HeaderCacheControl))),
		}
	}()

	var res certsResponse
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, 0, res.err
	}
	if res.status != fasthttp.StatusOK {
		return nil, 0, fmt.Errorf("%s returned %d", v.cfg.CertsURL, res.status)
	}

	var set jwkSet
	if err := json.Unmarshal(res.body, &set); err != nil {
		return nil, 0, fmt.Errorf("decode key set: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			logger.Warnf("skipping signing key %s: %v", k.Kid, err)
			continue
		}
		keys[k.Kid] = pub
	}

	ttl := res.maxAge
	if ttl <= 0 {
		ttl = defaultKeysTTL
	}
	logger.Debugf("loaded %d google signing keys, cached for %s", len(keys), ttl)
	return keys, ttl, nil
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 3 {
		return nil, fmt.Errorf("bad exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}

// maxAge reads the max-age directive of a Cache-Control header.
func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// audiences accepts the string and array forms of aud.
func audiences(raw json.RawMessage) []string {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	_ = json.Unmarshal(raw, &many)
	return many
}

// truthy accepts true and "true"; older tokens carry the string form.
func truthy(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	return json.Unmarshal(raw, &s) == nil && strings.EqualFold(s, "true")
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
