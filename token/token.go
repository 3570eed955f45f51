package token

import (
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// ExpiryMargin is subtracted from the server-declared lifetime when an
// AccessToken is minted, compensating for clock skew and the network delay
// between issuance and first use.
const ExpiryMargin = 10 * time.Second

// AccessToken is an immutable bearer credential with an absolute expiry.
// The credential string is a secret and must never be logged.
type AccessToken struct {
	credential string
	expiresAt  time.Time
}

// New mints an AccessToken from a raw credential and the server-declared
// lifetime. The expiry instant is issuance time plus lifetime minus
// ExpiryMargin.
func New(credential string, lifetime time.Duration) AccessToken {
	return AccessToken{
		credential: credential,
		expiresAt:  NowTimeFunc().Add(lifetime - ExpiryMargin),
	}
}

// Restore rebuilds an AccessToken from a persisted credential and absolute
// expiry. No margin is re-applied; the margin was accounted for when the
// token was first minted.
func Restore(credential string, expiresAt time.Time) AccessToken {
	return AccessToken{credential: credential, expiresAt: expiresAt}
}

// Credential returns the raw bearer credential.
func (t AccessToken) Credential() string {
	return t.credential
}

// ExpiresAt returns the absolute expiry instant.
func (t AccessToken) ExpiresAt() time.Time {
	return t.expiresAt
}

// Valid reports whether the token can still be presented: a non-empty
// credential whose expiry lies in the future. Validity depends on wall-clock
// time only.
func (t AccessToken) Valid() bool {
	return t.credential != "" && NowTimeFunc().Before(t.expiresAt)
}
