package ports

import "time"

// ViewerClaims authorize a local UI to watch and control one pairing.
type ViewerClaims struct {
	PairingID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Tokenizer converts viewer claims to bearer tokens and back.
type Tokenizer interface {
	ClaimsToToken(claims *ViewerClaims) (string, error)
	TokenToClaims(token string) (*ViewerClaims, error)
}
