package domain

import "time"

type HandleState string

const (
	HandleUnclaimed HandleState = "unclaimed"
	HandleReserved  HandleState = "reserved"
	HandleClaimed   HandleState = "claimed"
)

// HandleStatus tracks the unclaimed -> reserved -> claimed lifecycle for
// one identity. A reservation is recorded locally even when the relay is
// unreachable; NetworkConfirmed distinguishes offline-first records from
// acknowledged ones.
type HandleStatus struct {
	State            HandleState `json:"state"`
	Handle           string      `json:"handle,omitempty"`
	ReservedAt       *time.Time  `json:"reservedAt,omitempty"`
	ClaimedAt        *time.Time  `json:"claimedAt,omitempty"`
	NetworkConfirmed bool        `json:"networkConfirmed"`
}

func (s HandleStatus) DisplayName() string {
	switch s.State {
	case HandleReserved:
		return "@" + s.Handle + " (pending)"
	case HandleClaimed:
		return "@" + s.Handle
	}
	return "Anonymous"
}

// ClaimProof carries the trajectory evidence embedded in a handle claim.
type ClaimProof struct {
	BreadcrumbCount   int64     `json:"breadcrumb_count"`
	TrustScore        float64   `json:"trust_score"`
	FirstBreadcrumbAt time.Time `json:"first_breadcrumb_at"`
	LatestEpochRoot   *string   `json:"latest_epoch_root,omitempty"`
}

// HandleClaim is the one-shot signed message submitted to the relay. The
// signature covers the canonical-JSON encoding of handle, identity and
// proof; the relay re-derives those bytes independently, so the encoding
// must match bit for bit.
type HandleClaim struct {
	Handle    string     `json:"handle"`
	Identity  string     `json:"identity"`
	Proof     ClaimProof `json:"proof"`
	Signature string     `json:"signature"`
}

// Reservation is the signed reservation message. The signature covers
// "reserve:<handle>:<timestamp>".
type Reservation struct {
	Handle        string `json:"handle"`
	Identity      string `json:"identity"`
	EncryptionKey string `json:"encryptionKey"`
	Timestamp     string `json:"timestamp"`
	Signature     string `json:"signature"`
}

// Release is the signed release message, covering
// "release:<handle>:<timestamp>".
type Release struct {
	Handle    string `json:"handle"`
	Identity  string `json:"identity"`
	Timestamp string `json:"timestamp"`
	Signature string `json:"signature"`
}

// SignedRecord is the identity record published to the relay so peers
// can resolve a handle or public key to the derived exchange key. The
// signature covers the canonical-JSON encoding of Record.
type SignedRecord struct {
	Identity  string         `json:"identity"`
	Record    map[string]any `json:"record"`
	Signature string         `json:"signature"`
}
