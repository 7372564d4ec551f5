package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "1234.apps.googleusercontent.com"

type keyServer struct {
	key     *rsa.PrivateKey
	kid     string
	fetches atomic.Int32
	server  *httptest.Server
}

func newKeyServer(t *testing.T) *keyServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	ks := &keyServer{key: key, kid: "test-key"}
	ks.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ks.fetches.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=120, must-revalidate")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwkSet{Keys: []jwk{{
			Kty: "RSA",
			Kid: ks.kid,
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	t.Cleanup(ks.server.Close)
	return ks
}

func (ks *keyServer) sign(t *testing.T, kid string, claims map[string]any) string {
	t.Helper()
	header, _ := json.Marshal(map[string]string{"alg": "RS256", "kid": kid, "typ": "JWT"})
	payload, _ := json.Marshal(claims)
	input := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	digest := sha256.Sum256([]byte(input))
	sig, err := rsa.SignPKCS1v15(rand.Reader, ks.key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return input + "." + base64.RawURLEncoding.EncodeToString(sig)
}

var verifierNow = time.Date(2025, 8, 26, 10, 0, 0, 0, time.UTC)

func validClaims() map[string]any {
	return map[string]any{
		"iss":            "https://accounts.google.com",
		"aud":            testClientID,
		"sub":            "10769150350006150715113082367",
		"email":          "jane@wavemaker.com",
		"email_verified": true,
		"name":           "Jane Doe",
		"hd":             "wavemaker.com",
		"iat":            verifierNow.Add(-time.Minute).Unix(),
		"exp":            verifierNow.Add(time.Hour).Unix(),
	}
}

func newTestVerifier(t *testing.T, ks *keyServer, domains ...string) *GoogleVerifier {
	t.Helper()
	v := NewGoogleVerifier(Config{
		ClientID:       testClientID,
		AllowedDomains: domains,
		CertsURL:       ks.server.URL,
		Timeout:        5 * time.Second,
	})
	v.now = func() time.Time { return verifierNow }
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func TestVerify_ValidToken(t *testing.T) {
	ks := newKeyServer(t)
	v := newTestVerifier(t, ks, "wavemaker.com")

	id, err := v.Verify(context.Background(), ks.sign(t, ks.kid, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "jane@wavemaker.com", id.Email)
	assert.Equal(t, "Jane Doe", id.Name)
	assert.Equal(t, "wavemaker.com", id.HostedDomain)

	_, err = v.Verify(context.Background(), ks.sign(t, ks.kid, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, int32(1), ks.fetches.Load(), "key set is cached")
}

func TestVerify_Rejections(t *testing.T) {
	ks := newKeyServer(t)

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		domains []string
		want    error
	}{
		{"expired", func(c map[string]any) { c["exp"] = verifierNow.Add(-time.Hour).Unix() }, nil, ErrTokenExpired},
		{"wrong audience", func(c map[string]any) { c["aud"] = "other.apps.googleusercontent.com" }, nil, ErrInvalidAudience},
		{"wrong issuer", func(c map[string]any) { c["iss"] = "https://evil.example.com" }, nil, ErrInvalidIssuer},
		{"domain not allowed", func(c map[string]any) { c["hd"] = "example.com" }, []string{"wavemaker.com"}, ErrDomainNotAllowed},
		{"unverified email", func(c map[string]any) { c["email_verified"] = "false" }, []string{"wavemaker.com"}, ErrEmailNotVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(t, ks, tt.domains...)
			claims := validClaims()
			tt.mutate(claims)
			_, err := v.Verify(context.Background(), ks.sign(t, ks.kid, claims))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerify_EmailDomainWithoutHostedDomain(t *testing.T) {
	ks := newKeyServer(t)
	v := newTestVerifier(t, ks, "WaveMaker.com")

	claims := validClaims()
	delete(claims, "hd")
	claims["email_verified"] = "true"
	_, err := v.Verify(context.Background(), ks.sign(t, ks.kid, claims))
	assert.NoError(t, err)
}

func TestVerify_BadSignatureAndKeys(t *testing.T) {
	ks := newKeyServer(t)
	v := newTestVerifier(t, ks)

	token := ks.sign(t, ks.kid, validClaims())
	tampered := token[:len(token)-4] + "AAAA"
	_, err := v.Verify(context.Background(), tampered)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = v.Verify(context.Background(), ks.sign(t, "rotated", validClaims()))
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, int32(2), ks.fetches.Load(), "unknown kid triggers one refetch")

	_, err = v.Verify(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestMaxAge(t *testing.T) {
	assert.Equal(t, 19*time.Minute, maxAge("public, max-age=1140, must-revalidate, no-transform"))
	assert.Equal(t, time.Duration(0), maxAge("no-cache"))
	assert.Equal(t, time.Duration(0), maxAge("max-age=abc"))
}
