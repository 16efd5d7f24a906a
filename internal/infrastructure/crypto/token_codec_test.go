package crypto

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sessionguard/internal/domain/models"
	apperrors "github.com/turtacn/sessionguard/pkg/errors"
)

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

var testKey = bytes.Repeat([]byte{0x42}, 32)

func newTestCodec(t *testing.T) *JWETokenCodec {
	t.Helper()
	codec, err := NewJWETokenCodec(testKey)
	require.NoError(t, err)
	return codec
}

func testRequest() models.TokenRequest {
	return models.TokenRequest{
		TokenID:     uuid.New(),
		PrincipalID: uuid.New(),
		Roles:       "user,admin",
		IssuedAt:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		Audience:    "203.0.113.7",
		Issuer:      "https://auth.example.test",
		TTL:         3600 * time.Second,
	}
}

func requireStatus(t *testing.T, err error, allowed ...models.AuthStatus) {
	t.Helper()
	require.Error(t, err)
	var verr *models.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, allowed, verr.Status)
}

// seal encrypts an arbitrary payload under key, optionally marking it as a nested JWT.
func seal(t *testing.T, key []byte, payload string, nested bool) string {
	t.Helper()
	opts := &jose.EncrypterOptions{}
	if nested {
		opts = opts.WithContentType("JWT")
	}
	enc, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{Algorithm: jose.DIRECT, Key: key}, opts)
	require.NoError(t, err)
	obj, err := enc.Encrypt([]byte(payload))
	require.NoError(t, err)
	out, err := obj.CompactSerialize()
	require.NoError(t, err)
	return out
}

func sign(t *testing.T, method jwt.SigningMethod, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func wireClaims(req models.TokenRequest) jwt.MapClaims {
	return jwt.MapClaims{
		"iss": req.Issuer,
		"aud": req.Audience,
		"jti": req.TokenID.String(),
		"sub": req.PrincipalID.String(),
		"iat": req.IssuedAt.Unix(),
		"exp": req.IssuedAt.Add(req.TTL).Unix(),
	}
}

func TestNewJWETokenCodec_RejectsBadKey(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		_, err := NewJWETokenCodec(make([]byte, size))
		assert.True(t, apperrors.IsCodecError(err), "size %d", size)
	}
}

func TestJWETokenCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	for _, roles := range []string{"user,admin", ""} {
		req := testRequest()
		req.Roles = roles

		token, err := codec.Generate(req)
		require.NoError(t, err)
		assert.Equal(t, 5, len(strings.Split(token, ".")), "compact JWE has five segments")

		claims, err := codec.Verify(token)
		require.NoError(t, err)

		assert.Equal(t, req.TokenID, claims.TokenID)
		assert.Equal(t, req.PrincipalID, claims.PrincipalID)
		assert.Equal(t, roles, claims.Roles)
		assert.Equal(t, req.Issuer, claims.Issuer)
		assert.Equal(t, req.Audience, claims.Audience)
		assert.True(t, claims.IssuedAt.Equal(req.IssuedAt))
		assert.True(t, claims.ExpiresAt.Equal(claims.IssuedAt.Add(req.TTL)))
	}
}

func TestJWETokenCodec_TruncatesIssuedAtToSeconds(t *testing.T) {
	codec := newTestCodec(t)
	req := testRequest()
	req.IssuedAt = req.IssuedAt.Add(750 * time.Millisecond)

	token, err := codec.Generate(req)
	require.NoError(t, err)
	claims, err := codec.Verify(token)
	require.NoError(t, err)

	assert.True(t, claims.IssuedAt.Equal(req.IssuedAt.Truncate(time.Second)))
	assert.Equal(t, req.TTL, claims.ExpiresAt.Sub(claims.IssuedAt))
}

func TestJWETokenCodec_TamperedBytes(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Generate(testRequest())
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		b := []byte(token)
		b[i] ^= 0x80
		_, err := codec.Verify(string(b))
		requireStatus(t, err, models.AuthStatusBadToken, models.AuthStatusBadSignature)
	}
}

func TestJWETokenCodec_SubstitutedCharacters(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Generate(testRequest())
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		// The final character of a segment may only carry padding bits.
		if token[i] == '.' || i == len(token)-1 || token[i+1] == '.' {
			continue
		}
		replacement := base64URLAlphabet[(strings.IndexByte(base64URLAlphabet, token[i])+1)%len(base64URLAlphabet)]
		tampered := token[:i] + string(replacement) + token[i+1:]

		_, err := codec.Verify(tampered)
		requireStatus(t, err, models.AuthStatusBadToken, models.AuthStatusBadSignature)
	}
}

func TestJWETokenCodec_Garbage(t *testing.T) {
	codec := newTestCodec(t)
	for _, in := range []string{"x", "a.b.c", "a.b.c.d.e", "....", strings.Repeat("A", 300)} {
		_, err := codec.Verify(in)
		requireStatus(t, err, models.AuthStatusBadToken)
	}
}

func TestJWETokenCodec_WrongKey(t *testing.T) {
	other, err := NewJWETokenCodec(bytes.Repeat([]byte{0x24}, 32))
	require.NoError(t, err)
	token, err := other.Generate(testRequest())
	require.NoError(t, err)

	_, err = newTestCodec(t).Verify(token)
	requireStatus(t, err, models.AuthStatusBadToken)
}

func TestJWETokenCodec_RequiresNestedContentType(t *testing.T) {
	inner := sign(t, jwt.SigningMethodHS256, testKey, wireClaims(testRequest()))

	_, err := newTestCodec(t).Verify(seal(t, testKey, inner, false))
	requireStatus(t, err, models.AuthStatusBadToken)
}

func TestJWETokenCodec_InnerNotSigned(t *testing.T) {
	_, err := newTestCodec(t).Verify(seal(t, testKey, `{"sub":"x"}`, true))
	requireStatus(t, err, models.AuthStatusBadToken)
}

func TestJWETokenCodec_BadInnerSignature(t *testing.T) {
	codec := newTestCodec(t)
	claims := wireClaims(testRequest())

	forged := sign(t, jwt.SigningMethodHS256, bytes.Repeat([]byte{0x01}, 32), claims)
	_, err := codec.Verify(seal(t, testKey, forged, true))
	requireStatus(t, err, models.AuthStatusBadSignature)

	otherAlg := sign(t, jwt.SigningMethodHS512, testKey, claims)
	_, err = codec.Verify(seal(t, testKey, otherAlg, true))
	requireStatus(t, err, models.AuthStatusBadSignature)
}

func TestJWETokenCodec_BadClaims(t *testing.T) {
	codec := newTestCodec(t)

	tests := []struct {
		name   string
		mutate func(c jwt.MapClaims)
	}{
		{"missing jti", func(c jwt.MapClaims) { delete(c, "jti") }},
		{"jti not a uuid", func(c jwt.MapClaims) { c["jti"] = "abc" }},
		{"jti not a string", func(c jwt.MapClaims) { c["jti"] = 7 }},
		{"missing sub", func(c jwt.MapClaims) { delete(c, "sub") }},
		{"sub not a uuid", func(c jwt.MapClaims) { c["sub"] = "alice" }},
		{"missing iss", func(c jwt.MapClaims) { delete(c, "iss") }},
		{"missing aud", func(c jwt.MapClaims) { delete(c, "aud") }},
		{"two audiences", func(c jwt.MapClaims) { c["aud"] = []string{"a", "b"} }},
		{"missing iat", func(c jwt.MapClaims) { delete(c, "iat") }},
		{"missing exp", func(c jwt.MapClaims) { delete(c, "exp") }},
		{"exp not a number", func(c jwt.MapClaims) { c["exp"] = "tomorrow" }},
		{"roles not a string", func(c jwt.MapClaims) { c["roles"] = []string{"admin"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := wireClaims(testRequest())
			tt.mutate(claims)
			token := seal(t, testKey, sign(t, jwt.SigningMethodHS256, testKey, claims), true)

			_, err := codec.Verify(token)
			requireStatus(t, err, models.AuthStatusBadClaims)
		})
	}
}

func TestGenerateSharedSecret(t *testing.T) {
	a, err := GenerateSharedSecret()
	require.NoError(t, err)
	b, err := GenerateSharedSecret()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Len(t, EncodeSharedSecret(a), 64)

	_, err = NewJWETokenCodec(a)
	assert.NoError(t, err)
}
