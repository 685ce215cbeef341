package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gnsd/internal/domain"
)

// Component weights. They sum to 1.0.
const (
	weightTrajectoryQuality   = 0.25
	weightTemporalConsistency = 0.20
	weightChainIntegrity      = 0.25
	weightEpochReliability    = 0.15
	weightGeographicDiversity = 0.15
)

const defaultScoreTTL = 5 * time.Minute

// TrustRequirements is a named minimums profile checked by Verify.
type TrustRequirements struct {
	MinBreadcrumbs     int64
	MinTrustScore      float64
	MinAccountAgeDays  int
	MinUniqueLocations int64
	RequiredTier       domain.TrustTier
}

// HandleClaimRequirements is the baseline profile for claiming a
// handle: a week of collection across at least ten cells.
func HandleClaimRequirements() TrustRequirements {
	return TrustRequirements{
		MinBreadcrumbs:     100,
		MinTrustScore:      20.0,
		MinAccountAgeDays:  7,
		MinUniqueLocations: 10,
		RequiredTier:       domain.TierRooted,
	}
}

// PaymentRequirements is the stricter profile relays apply to
// payment-capable peers. No payment flow runs on this node; the
// profile exists so peers verify against the same minimums.
func PaymentRequirements() TrustRequirements {
	return TrustRequirements{
		MinBreadcrumbs:     200,
		MinTrustScore:      40.0,
		MinAccountAgeDays:  14,
		MinUniqueLocations: 20,
		RequiredTier:       domain.TierEstablished,
	}
}

// Scorer derives a deterministic, explainable trust score from chain
// and epoch observables. Pure reads; safe to call concurrently with
// appends.
type Scorer struct {
	Crumbs   domain.BreadcrumbRepository
	Epochs   domain.EpochRepository
	Chain    *ChainService
	Cache    domain.TrustScoreCache
	Clock    Clock
	Logger   *slog.Logger
	ScoreTTL time.Duration
}

func NewScorer(crumbs domain.BreadcrumbRepository, epochs domain.EpochRepository, chain *ChainService, cache domain.TrustScoreCache, clock Clock, logger *slog.Logger) *Scorer {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		Crumbs:   crumbs,
		Epochs:   epochs,
		Chain:    chain,
		Cache:    cache,
		Clock:    clock,
		Logger:   logger,
		ScoreTTL: defaultScoreTTL,
	}
}

// Score recomputes the full component breakdown from stored state. The
// chain is verified end to end here; a single broken link zeroes the
// chainIntegrity component.
func (s *Scorer) Score(ctx context.Context, identity domain.Identity) (domain.TrustScore, error) {
	crumbs, err := s.Crumbs.ListAll(ctx, identity.ID)
	if err != nil {
		return domain.TrustScore{}, err
	}
	uniqueCells, err := s.Crumbs.CountUniqueCells(ctx, identity.ID)
	if err != nil {
		return domain.TrustScore{}, err
	}
	epochCount, err := s.Epochs.Count(ctx, identity.ID)
	if err != nil {
		return domain.TrustScore{}, err
	}

	chainValid := true
	if err := s.Chain.VerifyChain(crumbs, identity.PublicKeyHex); err != nil {
		chainValid = false
		s.Logger.Warn("chain verification failed during scoring",
			"identity", identity.ID, "error", err)
	}

	now := s.Clock()
	ageDays := int(now.Sub(identity.CreatedAt).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}

	score := ComputeScore(int64(len(crumbs)), ageDays, uniqueCells, epochCount, chainValid)
	score.CalculatedAt = now

	if s.Cache != nil {
		if err := s.Cache.Put(ctx, identity.ID, score.Score, s.ScoreTTL); err != nil {
			s.Logger.Warn("cache trust score", "identity", identity.ID, "error", err)
		}
	}
	return score, nil
}

// CachedScore returns the cached composite when fresh, recomputing
// otherwise. Only the composite is ever cached; component breakdowns
// are always recomputed.
func (s *Scorer) CachedScore(ctx context.Context, identity domain.Identity) (float64, error) {
	if s.Cache != nil {
		if score, ok, err := s.Cache.Get(ctx, identity.ID); err == nil && ok {
			return score, nil
		}
	}
	score, err := s.Score(ctx, identity)
	if err != nil {
		return 0, err
	}
	return score.Score, nil
}

// Verify checks an identity against a requirements profile and returns
// the named pass/fail breakdown.
func (s *Scorer) Verify(ctx context.Context, identity domain.Identity, req TrustRequirements) (domain.TrustVerification, error) {
	score, err := s.Score(ctx, identity)
	if err != nil {
		return domain.TrustVerification{}, err
	}

	checks := []domain.TrustCheck{
		{
			Name:     "breadcrumb_count",
			Passed:   score.BreadcrumbCount >= req.MinBreadcrumbs,
			Details:  "minimum trajectory history",
			Required: fmt.Sprintf("%d", req.MinBreadcrumbs),
			Actual:   fmt.Sprintf("%d", score.BreadcrumbCount),
		},
		{
			Name:     "trust_score",
			Passed:   score.Score >= req.MinTrustScore,
			Details:  "minimum composite trust score",
			Required: fmt.Sprintf("%.1f", req.MinTrustScore),
			Actual:   fmt.Sprintf("%.1f", score.Score),
		},
		{
			Name:     "account_age",
			Passed:   score.AccountAgeDays >= req.MinAccountAgeDays,
			Details:  "minimum account age in days",
			Required: fmt.Sprintf("%d", req.MinAccountAgeDays),
			Actual:   fmt.Sprintf("%d", score.AccountAgeDays),
		},
		{
			Name:     "unique_locations",
			Passed:   score.UniqueLocations >= req.MinUniqueLocations,
			Details:  "minimum distinct cells visited",
			Required: fmt.Sprintf("%d", req.MinUniqueLocations),
			Actual:   fmt.Sprintf("%d", score.UniqueLocations),
		},
		{
			Name:    "chain_integrity",
			Passed:  score.Components.ChainIntegrity == 100,
			Details: "hash chain verifies end to end",
		},
	}
	if req.RequiredTier != "" {
		checks = append(checks, domain.TrustCheck{
			Name:     "trust_tier",
			Passed:   score.Tier.AtLeast(req.RequiredTier),
			Details:  "minimum trust tier",
			Required: string(req.RequiredTier),
			Actual:   string(score.Tier),
		})
	}

	verified := true
	for _, check := range checks {
		if !check.Passed {
			verified = false
			break
		}
	}

	return domain.TrustVerification{
		Identity:   identity.PublicKeyHex,
		IsVerified: verified,
		TrustScore: score,
		Checks:     checks,
		VerifiedAt: s.Clock(),
	}, nil
}

// ComputeScore is the deterministic scoring function over the raw
// observables.
func ComputeScore(breadcrumbCount int64, accountAgeDays int, uniqueLocations, epochCount int64, chainValid bool) domain.TrustScore {
	components := domain.TrustComponents{
		TrajectoryQuality:   trajectoryQuality(breadcrumbCount, accountAgeDays),
		TemporalConsistency: temporalConsistency(breadcrumbCount, accountAgeDays),
		ChainIntegrity:      0,
		EpochReliability:    0,
		GeographicDiversity: geographicDiversity(uniqueLocations),
	}
	if chainValid {
		components.ChainIntegrity = 100
	}
	if epochCount > 0 {
		components.EpochReliability = 80
	}

	composite := components.TrajectoryQuality*weightTrajectoryQuality +
		components.TemporalConsistency*weightTemporalConsistency +
		components.ChainIntegrity*weightChainIntegrity +
		components.EpochReliability*weightEpochReliability +
		components.GeographicDiversity*weightGeographicDiversity
	composite = clamp(composite, 0, 100)

	return domain.TrustScore{
		Score:           composite,
		Tier:            domain.TierFromScore(composite),
		Components:      components,
		BreadcrumbCount: breadcrumbCount,
		AccountAgeDays:  accountAgeDays,
		UniqueLocations: uniqueLocations,
		EpochCount:      epochCount,
	}
}

// trajectoryQuality rewards sustained collection against an expected
// activity of 10 breadcrumbs per day.
func trajectoryQuality(breadcrumbCount int64, accountAgeDays int) float64 {
	if accountAgeDays == 0 {
		return 0
	}
	ratio := float64(breadcrumbCount) / (float64(accountAgeDays) * 10)
	if ratio > 2.0 {
		ratio = 2.0
	}
	return clamp(ratio*50, 0, 100)
}

func temporalConsistency(breadcrumbCount int64, accountAgeDays int) float64 {
	if accountAgeDays < 7 {
		// New accounts are capped low regardless of burst activity.
		return clamp(float64(breadcrumbCount)/10, 0, 30)
	}
	dailyAvg := float64(breadcrumbCount) / float64(accountAgeDays)
	switch {
	case dailyAvg >= 5:
		return 100
	case dailyAvg >= 2:
		return 80
	case dailyAvg >= 1:
		return 60
	case dailyAvg >= 0.5:
		return 40
	default:
		return 20
	}
}

func geographicDiversity(uniqueLocations int64) float64 {
	n := float64(uniqueLocations)
	switch {
	case uniqueLocations <= 5:
		return n * 5
	case uniqueLocations <= 20:
		return 25 + (n-5)*2.5
	case uniqueLocations <= 50:
		return 62.5 + (n-20)*1.0
	case uniqueLocations <= 100:
		return 92.5 + (n-50)*0.15
	default:
		return 100
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
