package tokenizer

import "github.com/golang-jwt/jwt/v5"

// ViewerClaims are the standard claims of a viewer token. The subject is the
// pairing ID.
type ViewerClaims struct {
	jwt.RegisteredClaims
}
