package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gnsd/internal/domain"
	"gnsd/internal/infra/cache"
	"gnsd/internal/infra/crypto"
	"gnsd/internal/infra/policy"
)

type handleFixture struct {
	*chainFixture
	epochs   *memEpochs
	relay    *stubRelay
	workflow *HandleWorkflow
}

func newHandleFixture(t *testing.T, cfg HandleConfig, policyEngine *policy.Engine) *handleFixture {
	t.Helper()
	cf := newChainFixture(t)
	epochs := newMemEpochs(cf.crumbs)
	relay := newStubRelay()
	scorer := NewScorer(cf.crumbs, epochs, cf.chain, cache.NewMemory(), cf.clock, discardLogger())
	workflow := NewHandleWorkflow(cf.identities, cf.crumbs, epochs, scorer, policyEngine, cf.crypto, relay, cf.clock, discardLogger(), cfg)
	return &handleFixture{
		chainFixture: cf,
		epochs:       epochs,
		relay:        relay,
		workflow:     workflow,
	}
}

// reload pulls the persisted identity so the caller sees committed
// handle state rather than the stale value it passed in.
func (f *handleFixture) reload(t *testing.T) domain.Identity {
	t.Helper()
	identity, err := f.identities.Get(context.Background(), f.identity.ID)
	if err != nil {
		t.Fatalf("reload identity: %v", err)
	}
	return *identity
}

func TestValidateFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"alice", "alice", false},
		{" @Alice ", "alice", false},
		{"bob_99", "bob_99", false},
		{"@carol", "carol", false},
		{"ab", "", true},
		{strings.Repeat("a", 21), "", true},
		{"bad-handle", "", true},
		{"spaced out", "", true},
		{"admin", "", true},
		{"GNSD", "", true},
		{"", "", true},
		{"@@@", "", true},
	}
	for _, tc := range cases {
		got, err := ValidateFormat(tc.in)
		if tc.wantErr {
			var invalid *domain.ValidationError
			if !errors.As(err, &invalid) {
				t.Errorf("ValidateFormat(%q) err = %v, want ValidationError", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateFormat(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ValidateFormat(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReserveConfirmsOnline(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)
	ctx := context.Background()

	status, err := f.workflow.Reserve(ctx, f.identity, "@Alice")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if status.State != domain.HandleReserved || status.Handle != "alice" {
		t.Fatalf("status = %+v", status)
	}
	if !status.NetworkConfirmed {
		t.Fatal("reservation acknowledged by relay but not marked confirmed")
	}
	if status.ReservedAt == nil {
		t.Fatal("reservedAt not set")
	}

	persisted := f.reload(t)
	if persisted.HandleStatus.State != domain.HandleReserved {
		t.Fatalf("persisted state = %s", persisted.HandleStatus.State)
	}

	if len(f.relay.reservations) != 1 {
		t.Fatalf("relay received %d reservations", len(f.relay.reservations))
	}
	res := f.relay.reservations[0]
	if res.Identity != f.identity.PublicKeyHex || res.EncryptionKey != f.identity.ExchangePublicKeyHex {
		t.Fatalf("reservation keys = %+v", res)
	}
	message := fmt.Sprintf("reserve:%s:%s", res.Handle, res.Timestamp)
	if !f.crypto.VerifyHex(f.identity.PublicKeyHex, []byte(message), res.Signature) {
		t.Fatal("reservation signature does not verify")
	}
}

func TestReserveKeepsLocalStateOffline(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)
	f.relay.unreachable = true

	status, err := f.workflow.Reserve(context.Background(), f.identity, "alice")
	if err != nil {
		t.Fatalf("reserve offline: %v", err)
	}
	if status.State != domain.HandleReserved {
		t.Fatalf("state = %s, want reserved", status.State)
	}
	if status.NetworkConfirmed {
		t.Fatal("confirmed without a reachable relay")
	}
	if f.reload(t).HandleStatus.State != domain.HandleReserved {
		t.Fatal("offline reservation not persisted")
	}
}

func TestReserveHandleTaken(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)
	f.relay.available = false

	_, err := f.workflow.Reserve(context.Background(), f.identity, "alice")
	if !errors.Is(err, domain.ErrHandleTaken) {
		t.Fatalf("err = %v, want ErrHandleTaken", err)
	}
	if f.reload(t).HandleStatus.State != domain.HandleUnclaimed {
		t.Fatal("taken handle must not change local state")
	}
}

func TestReserveRaceRollsBack(t *testing.T) {
	// Availability said yes but submission lost the race.
	f := newHandleFixture(t, HandleConfig{}, nil)
	f.relay.conflictOn["alice"] = true

	_, err := f.workflow.Reserve(context.Background(), f.identity, "alice")
	if !errors.Is(err, domain.ErrHandleTaken) {
		t.Fatalf("err = %v, want ErrHandleTaken", err)
	}
	if f.reload(t).HandleStatus.State != domain.HandleUnclaimed {
		t.Fatal("lost race must roll the local reservation back")
	}
}

func TestReserveRejectsClaimedIdentity(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)
	f.identity.HandleStatus = domain.HandleStatus{State: domain.HandleClaimed, Handle: "alice"}

	_, err := f.workflow.Reserve(context.Background(), f.identity, "bob")
	if !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("err = %v, want ErrAlreadyClaimed", err)
	}
}

func TestClaimRequiresReservation(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)

	_, err := f.workflow.Claim(context.Background(), f.identity, "alice")
	if !errors.Is(err, domain.ErrNoReservation) {
		t.Fatalf("err = %v, want ErrNoReservation", err)
	}
}

func TestClaimRejectsMismatchedHandle(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)
	ctx := context.Background()
	if _, err := f.workflow.Reserve(ctx, f.identity, "alice"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	_, err := f.workflow.Claim(ctx, f.reload(t), "bob")
	var invalid *domain.ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestClaimInsufficientBreadcrumbs(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)
	ctx := context.Background()
	f.appendN(t, 99)
	if _, err := f.workflow.Reserve(ctx, f.identity, "alice"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	before := f.reload(t)

	_, err := f.workflow.Claim(ctx, before, "alice")
	var insufficient *domain.InsufficientBreadcrumbsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientBreadcrumbsError", err)
	}
	if insufficient.Required != 100 || insufficient.Current != 99 {
		t.Fatalf("deficit = %d/%d, want 99/100", insufficient.Current, insufficient.Required)
	}

	after := f.reload(t)
	if after.HandleStatus != before.HandleStatus {
		t.Fatal("failed claim must not change handle state")
	}
	if len(f.relay.claims) != 0 {
		t.Fatal("failed claim must not reach the relay")
	}
}

func TestClaimInsufficientTrust(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{MinTrustForHandle: 99}, nil)
	ctx := context.Background()
	f.appendN(t, 100)
	if _, err := f.workflow.Reserve(ctx, f.identity, "alice"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	_, err := f.workflow.Claim(ctx, f.reload(t), "alice")
	var insufficient *domain.InsufficientTrustError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientTrustError", err)
	}
	if insufficient.Required != 99 {
		t.Fatalf("required = %v", insufficient.Required)
	}
}

func TestClaimSignsCanonicalProof(t *testing.T) {
	engine, err := policy.NewEngine(context.Background(), "")
	if err != nil {
		t.Fatalf("policy engine: %v", err)
	}
	f := newHandleFixture(t, HandleConfig{}, engine)
	ctx := context.Background()
	crumbs := f.appendN(t, 100)
	if _, err := f.workflow.Reserve(ctx, f.identity, "alice"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	status, err := f.workflow.Claim(ctx, f.reload(t), "@ALICE")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if status.State != domain.HandleClaimed || !status.NetworkConfirmed {
		t.Fatalf("status = %+v", status)
	}
	if status.ClaimedAt == nil || status.ReservedAt == nil {
		t.Fatal("claim must keep both transition timestamps")
	}

	if len(f.relay.claims) != 1 {
		t.Fatalf("relay received %d claims", len(f.relay.claims))
	}
	claim := f.relay.claims[0]
	if claim.Handle != "alice" || claim.Identity != f.identity.PublicKeyHex {
		t.Fatalf("claim = %+v", claim)
	}
	if claim.Proof.BreadcrumbCount != 100 {
		t.Fatalf("proof breadcrumbCount = %d", claim.Proof.BreadcrumbCount)
	}
	if !claim.Proof.FirstBreadcrumbAt.Equal(crumbs[0].Timestamp) {
		t.Fatalf("proof firstBreadcrumbAt = %v", claim.Proof.FirstBreadcrumbAt)
	}

	// The relay side re-derives the signing bytes from the claim fields.
	payload := map[string]any{
		"handle":   claim.Handle,
		"identity": claim.Identity,
		"proof": map[string]any{
			"breadcrumb_count":    claim.Proof.BreadcrumbCount,
			"trust_score":         claim.Proof.TrustScore,
			"first_breadcrumb_at": claim.Proof.FirstBreadcrumbAt.UTC().Format(time.RFC3339),
		},
	}
	signingBytes, err := crypto.Canonical(payload)
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if !f.crypto.VerifyHex(f.identity.PublicKeyHex, signingBytes, claim.Signature) {
		t.Fatal("claim signature does not verify against canonical payload")
	}

	if len(f.relay.records) != 1 {
		t.Fatalf("relay received %d identity records", len(f.relay.records))
	}
	record := f.relay.records[0]
	recordBytes, err := crypto.Canonical(record.Record)
	if err != nil {
		t.Fatalf("canonical record: %v", err)
	}
	if !f.crypto.VerifyHex(f.identity.PublicKeyHex, recordBytes, record.Signature) {
		t.Fatal("identity record signature does not verify")
	}
	if record.Record["handle"] != "alice" {
		t.Fatalf("record handle = %v", record.Record["handle"])
	}
}

func TestClaimIncludesLatestEpochRoot(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)
	ctx := context.Background()
	f.appendN(t, 120)

	publisher := NewPublisher(f.crumbs, f.epochs, f.crypto, NewIdentityLocks(), f.relay, cache.NewMemory(), f.clock, discardLogger(), PublisherConfig{MinBreadcrumbsPerEpoch: 100, BlockSize: 10})
	epoch, err := publisher.Publish(ctx, f.identity)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, err := f.workflow.Reserve(ctx, f.identity, "alice"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := f.workflow.Claim(ctx, f.reload(t), "alice"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	claim := f.relay.claims[0]
	if claim.Proof.LatestEpochRoot == nil || *claim.Proof.LatestEpochRoot != epoch.MerkleRoot {
		t.Fatalf("proof latestEpochRoot = %v, want %s", claim.Proof.LatestEpochRoot, epoch.MerkleRoot)
	}
}

func TestClaimRaceRollsBack(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)
	ctx := context.Background()
	f.appendN(t, 100)
	if _, err := f.workflow.Reserve(ctx, f.identity, "alice"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	reserved := f.reload(t)
	f.relay.conflictOn["alice"] = true

	_, err := f.workflow.Claim(ctx, reserved, "alice")
	if !errors.Is(err, domain.ErrHandleTaken) {
		t.Fatalf("err = %v, want ErrHandleTaken", err)
	}
	after := f.reload(t)
	if after.HandleStatus.State != domain.HandleReserved {
		t.Fatalf("state = %s, want rollback to reserved", after.HandleStatus.State)
	}
}

func TestClaimKeepsLocalStateOffline(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)
	ctx := context.Background()
	f.appendN(t, 100)
	if _, err := f.workflow.Reserve(ctx, f.identity, "alice"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	reserved := f.reload(t)
	f.relay.unreachable = true

	status, err := f.workflow.Claim(ctx, reserved, "alice")
	if err != nil {
		t.Fatalf("claim offline: %v", err)
	}
	if status.State != domain.HandleClaimed || status.NetworkConfirmed {
		t.Fatalf("status = %+v, want unconfirmed claimed", status)
	}
	if f.reload(t).HandleStatus.State != domain.HandleClaimed {
		t.Fatal("offline claim not persisted")
	}
}

func TestReleaseClearsHandle(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)
	ctx := context.Background()
	if _, err := f.workflow.Reserve(ctx, f.identity, "alice"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := f.workflow.Release(ctx, f.reload(t)); err != nil {
		t.Fatalf("release: %v", err)
	}
	if f.reload(t).HandleStatus.State != domain.HandleUnclaimed {
		t.Fatal("release did not clear local state")
	}

	if len(f.relay.releases) != 1 {
		t.Fatalf("relay received %d releases", len(f.relay.releases))
	}
	rel := f.relay.releases[0]
	message := fmt.Sprintf("release:%s:%s", rel.Handle, rel.Timestamp)
	if !f.crypto.VerifyHex(f.identity.PublicKeyHex, []byte(message), rel.Signature) {
		t.Fatal("release signature does not verify")
	}
}

func TestReleaseWithoutHandle(t *testing.T) {
	f := newHandleFixture(t, HandleConfig{}, nil)
	if err := f.workflow.Release(context.Background(), f.identity); !errors.Is(err, domain.ErrNoReservation) {
		t.Fatalf("err = %v, want ErrNoReservation", err)
	}
}
