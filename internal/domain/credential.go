package domain

import "time"

// Credential authorizes exactly one session negotiation. Value is opaque
// to the client and only ever forwarded as a bearer token.
type Credential struct {
	Value      string        `json:"credential"`
	SessionID  string        `json:"session_id,omitempty"`
	ExpiresIn  time.Duration `json:"-"`
	ExpiresSec int64         `json:"expires_in,omitempty"`
}

// Expired reports whether the credential's expiry hint has passed since
// issuedAt. Credentials without a hint never report expired.
func (c Credential) Expired(issuedAt time.Time, now time.Time) bool {
	if c.ExpiresIn <= 0 {
		return false
	}
	return now.After(issuedAt.Add(c.ExpiresIn))
}
