package domain

import "time"

type TrustTier string

const (
	TierSeedling    TrustTier = "seedling"
	TierRooted      TrustTier = "rooted"
	TierEstablished TrustTier = "established"
	TierTrusted     TrustTier = "trusted"
	TierVerified    TrustTier = "verified"
)

// TierFromScore maps the integer part of a composite score onto the five
// closed tier bands.
func TierFromScore(score float64) TrustTier {
	switch s := int(score); {
	case s < 20:
		return TierSeedling
	case s < 40:
		return TierRooted
	case s < 60:
		return TierEstablished
	case s < 80:
		return TierTrusted
	default:
		return TierVerified
	}
}

func (t TrustTier) DisplayName() string {
	switch t {
	case TierSeedling:
		return "Seedling"
	case TierRooted:
		return "Rooted"
	case TierEstablished:
		return "Established"
	case TierTrusted:
		return "Trusted"
	case TierVerified:
		return "Verified"
	}
	return string(t)
}

// AtLeast reports whether t meets a minimum tier. An empty minimum is
// always met.
func (t TrustTier) AtLeast(min TrustTier) bool {
	return tierRank(t) >= tierRank(min)
}

func tierRank(t TrustTier) int {
	switch t {
	case TierRooted:
		return 1
	case TierEstablished:
		return 2
	case TierTrusted:
		return 3
	case TierVerified:
		return 4
	default:
		return 0
	}
}

// TrustComponents is the per-dimension breakdown of a trust score, each
// on the 0-100 scale.
type TrustComponents struct {
	TrajectoryQuality   float64 `json:"trajectoryQuality"`
	TemporalConsistency float64 `json:"temporalConsistency"`
	ChainIntegrity      float64 `json:"chainIntegrity"`
	EpochReliability    float64 `json:"epochReliability"`
	GeographicDiversity float64 `json:"geographicDiversity"`
}

// TrustScore is recomputed on demand from chain and epoch observables.
// It is never stored authoritatively; only the composite may be cached,
// and that cache is invalidated on any chain or epoch write.
type TrustScore struct {
	Score           float64         `json:"score"`
	Tier            TrustTier       `json:"tier"`
	Components      TrustComponents `json:"components"`
	BreadcrumbCount int64           `json:"breadcrumbCount"`
	AccountAgeDays  int             `json:"accountAgeDays"`
	UniqueLocations int64           `json:"uniqueLocations"`
	EpochCount      int64           `json:"epochCount"`
	CalculatedAt    time.Time       `json:"calculatedAt"`
}

// TrustCheck is one named pass/fail result from a requirements
// verification.
type TrustCheck struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Details  string `json:"details"`
	Required string `json:"required,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// TrustVerification is the outcome of checking an identity against a
// requirements profile.
type TrustVerification struct {
	Identity   string       `json:"identity"`
	IsVerified bool         `json:"isVerified"`
	TrustScore TrustScore   `json:"trustScore"`
	Checks     []TrustCheck `json:"checks"`
	VerifiedAt time.Time    `json:"verifiedAt"`
}

// PolicyDecision is the result of evaluating a privileged-operation
// policy for an identity's current observables.
type PolicyDecision struct {
	Allow      bool     `json:"allow"`
	Violations []string `json:"violations"`
}
