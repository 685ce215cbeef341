package domain

import "time"

// Identity is an asymmetric keypair with a locally chosen display name.
// The exchange key is derived deterministically from the signing seed, so
// peers can discover it from the published identity record. Identities
// are immutable after creation except for the cached handle status and
// counters.
type Identity struct {
	ID                   string    `json:"id"`
	DisplayName          string    `json:"displayName"`
	PublicKeyHex         string    `json:"publicKey"`
	ExchangePublicKeyHex string    `json:"encryptionKey"`
	SecretSeedHex        string    `json:"-"`
	CreatedAt            time.Time `json:"createdAt"`

	HandleStatus     HandleStatus `json:"handleStatus"`
	BreadcrumbCount  int64        `json:"breadcrumbCount"`
	CachedTrustScore float64      `json:"trustScore"`
}

// Handle returns the reserved or claimed handle, empty if none.
func (i Identity) Handle() string {
	return i.HandleStatus.Handle
}
