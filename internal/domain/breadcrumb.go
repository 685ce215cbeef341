package domain

import (
	"context"
	"time"
)

// GenesisHash is the sentinel that stands in for a missing predecessor
// when hashing the first record of a chain.
const GenesisHash = "genesis"

// Cell resolutions follow the H3 scale: MinCellResolution is roughly
// country-sized, MaxCellResolution roughly neighborhood-sized. Anything
// outside this band is rejected, never clamped.
const (
	MinCellResolution uint8 = 2
	MaxCellResolution uint8 = 10
)

type LocationSource string

const (
	SourceGPS     LocationSource = "gps"
	SourceWifi    LocationSource = "wifi"
	SourceCell    LocationSource = "cell"
	SourceNetwork LocationSource = "network"
	SourceManual  LocationSource = "manual"
	SourceFused   LocationSource = "fused"
)

// Breadcrumb is a signed, hash-linked proof that an identity was present
// in a quantized cell at a point in time. Breadcrumbs are immutable once
// created; only the Published flag is ever updated, when an epoch
// consumes them.
type Breadcrumb struct {
	ID             string         `json:"id"`
	CellIndex      string         `json:"cellIndex"`
	CellResolution uint8          `json:"cellResolution"`
	Timestamp      time.Time      `json:"timestamp"`
	PrevHash       *string        `json:"prevHash,omitempty"`
	Hash           string         `json:"hash"`
	Signature      string         `json:"signature"`
	Source         LocationSource `json:"source"`
	AccuracyMeters *float64       `json:"accuracyMeters,omitempty"`
	Published      bool           `json:"published"`

	// Flagged marks a breadcrumb whose timestamp precedes its
	// predecessor's. Chain linkage is by hash, not time, so this never
	// invalidates the chain.
	Flagged bool `json:"flagged,omitempty"`
}

// LocationSample is a raw reading from the sensor collaborator. Raw
// coordinates are quantized immediately and never persisted.
type LocationSample struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters *float64
	Source         LocationSource
}

// LocationProvider is the sensor collaborator feeding the collector.
type LocationProvider interface {
	Sample(ctx context.Context) (LocationSample, error)
}

// CellQuantizer converts raw coordinates into a privacy-preserving cell
// index at the given resolution.
type CellQuantizer interface {
	CellIndex(latitude, longitude float64, resolution uint8) (string, error)
}

func ValidSource(s LocationSource) bool {
	switch s {
	case SourceGPS, SourceWifi, SourceCell, SourceNetwork, SourceManual, SourceFused:
		return true
	}
	return false
}
