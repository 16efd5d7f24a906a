// Package crypto implements the session token codec: an HS256-signed JWT nested
// inside a direct-key A256GCM JWE.
package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/constants"
	apperrors "github.com/turtacn/sessionguard/pkg/errors"
)

var _ service.TokenCodec = (*JWETokenCodec)(nil)

// JWETokenCodec signs claims with a shared MAC key and encrypts the signed
// token with the same key. The key is read-only after construction.
type JWETokenCodec struct {
	key    []byte
	parser *jwt.Parser
}

// NewJWETokenCodec creates a codec for a 32-byte shared secret.
func NewJWETokenCodec(secret []byte) (*JWETokenCodec, error) {
	if len(secret) != constants.SharedSecretSize {
		return nil, &apperrors.CodecError{
			Op:  "init",
			Err: fmt.Errorf("shared secret must be %d bytes, got %d", constants.SharedSecretSize, len(secret)),
		}
	}
	key := make([]byte, len(secret))
	copy(key, secret)

	return &JWETokenCodec{
		key: key,
		// Time-based claims are checked by ClaimsValidator against the request clock.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{constants.InnerSigningAlgorithm}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Generate builds the claims, signs them and wraps the signed token in a JWE
// whose content type is "JWT". Timestamps have second precision.
func (c *JWETokenCodec) Generate(req models.TokenRequest) (string, error) {
	issuedAt := req.IssuedAt.Truncate(time.Second)
	expiresAt := issuedAt.Add(req.TTL)

	claims := jwt.MapClaims{
		"iss": req.Issuer,
		"aud": req.Audience,
		"jti": req.TokenID.String(),
		"sub": req.PrincipalID.String(),
		"iat": issuedAt.Unix(),
		"exp": expiresAt.Unix(),
	}
	if req.Roles != "" {
		claims[constants.ClaimRoles] = req.Roles
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", &apperrors.CodecError{Op: "sign", Err: err}
	}

	encrypter, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: c.key},
		(&jose.EncrypterOptions{}).WithContentType(jose.ContentType(constants.NestedContentType)),
	)
	if err != nil {
		return "", &apperrors.CodecError{Op: "encrypter", Err: err}
	}

	object, err := encrypter.Encrypt([]byte(signed))
	if err != nil {
		return "", &apperrors.CodecError{Op: "encrypt", Err: err}
	}

	token, err := object.CompactSerialize()
	if err != nil {
		return "", &apperrors.CodecError{Op: "serialize", Err: err}
	}
	return token, nil
}

// Verify decrypts token and checks its signature and claim shape. It does not
// check issuer, audience or expiry.
func (c *JWETokenCodec) Verify(token string) (*models.Claims, error) {
	object, err := jose.ParseEncrypted(token,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return nil, badToken("malformed envelope", err)
	}

	if cty, _ := object.Header.ExtraHeaders[jose.HeaderContentType].(string); cty != constants.NestedContentType {
		return nil, badToken("envelope does not carry a signed token", nil)
	}

	payload, err := object.Decrypt(c.key)
	if err != nil {
		return nil, badToken("decryption failed", err)
	}

	mapClaims := jwt.MapClaims{}
	_, err = c.parser.ParseWithClaims(string(payload), mapClaims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, &models.VerificationError{Status: models.AuthStatusBadSignature, Reason: "signature mismatch", Err: err}
		}
		return nil, badToken("malformed signed token", err)
	}

	return claimsFromMap(mapClaims)
}

func claimsFromMap(m jwt.MapClaims) (*models.Claims, error) {
	issuer, err := m.GetIssuer()
	if err != nil || issuer == "" {
		return nil, badClaims("iss", err)
	}

	audience, err := m.GetAudience()
	if err != nil || len(audience) != 1 || audience[0] == "" {
		return nil, badClaims("aud", err)
	}

	subject, err := m.GetSubject()
	if err != nil {
		return nil, badClaims("sub", err)
	}
	principalID, err := uuid.Parse(subject)
	if err != nil {
		return nil, badClaims("sub", err)
	}

	rawJTI, ok := m["jti"].(string)
	if !ok {
		return nil, badClaims("jti", nil)
	}
	tokenID, err := uuid.Parse(rawJTI)
	if err != nil {
		return nil, badClaims("jti", err)
	}

	issuedAt, err := m.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return nil, badClaims("iat", err)
	}
	expiresAt, err := m.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return nil, badClaims("exp", err)
	}

	var roles string
	if raw, present := m[constants.ClaimRoles]; present {
		if roles, ok = raw.(string); !ok {
			return nil, badClaims(constants.ClaimRoles, nil)
		}
	}

	return &models.Claims{
		TokenID:     tokenID,
		PrincipalID: principalID,
		IssuedAt:    issuedAt.Time.UTC(),
		ExpiresAt:   expiresAt.Time.UTC(),
		Issuer:      issuer,
		Audience:    audience[0],
		Roles:       roles,
	}, nil
}

func badToken(reason string, err error) error {
	return &models.VerificationError{Status: models.AuthStatusBadToken, Reason: reason, Err: err}
}

func badClaims(claim string, err error) error {
	return &models.VerificationError{Status: models.AuthStatusBadClaims, Reason: "missing or invalid " + claim, Err: err}
}
