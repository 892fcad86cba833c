package tokenizer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/ports"
)

const AudienceViewer = "pairing:viewer"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey}
}

// ClaimsToToken signs viewer claims
func (j *JWTTokenizer) ClaimsToToken(claims *ports.ViewerClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, ViewerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.PairingID,
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceViewer},
		},
	})

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// TokenToClaims verifies a viewer token and returns its claims
func (j *JWTTokenizer) TokenToClaims(tokenStr string) (*ports.ViewerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ViewerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceViewer), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*ViewerClaims)
	if !ok || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid claims", core.ErrInvalidToken)
	}

	return &ports.ViewerClaims{
		PairingID: claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
