package domain

import "time"

// Epoch is a signed, Merkle-rooted batch of breadcrumbs. Epochs chain to
// each other by hash, independently of the breadcrumb chain they are
// derived from, and are never deleted: they are the durable, compact
// proof artifact once breadcrumbs are pruned.
type Epoch struct {
	IdentityID    string    `json:"identity"`
	EpochIndex    uint32    `json:"epochIndex"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	MerkleRoot    string    `json:"merkleRoot"`
	BlockCount    uint32    `json:"blockCount"`
	PrevEpochHash *string   `json:"prevEpochHash,omitempty"`
	Signature     string    `json:"signature"`
	EpochHash     string    `json:"epochHash"`
}

// SignedEpoch is the wire form submitted to the relay, carrying the
// publishing identity's root public key.
type SignedEpoch struct {
	PKRoot    string `json:"pkRoot"`
	Epoch     Epoch  `json:"epoch"`
	Signature string `json:"signature"`
}

// CollectionStatus summarizes one identity's collection pipeline.
type CollectionStatus struct {
	Active           bool       `json:"isActive"`
	TotalCount       int64      `json:"totalCount"`
	PendingCount     int64      `json:"pendingCount"`
	EpochCount       int64      `json:"epochCount"`
	LastBreadcrumbAt *time.Time `json:"lastBreadcrumbAt,omitempty"`
	LastEpochAt      *time.Time `json:"lastEpochAt,omitempty"`
	CellResolution   uint8      `json:"cellResolution"`
	IntervalSeconds  int        `json:"collectionInterval"`
}
