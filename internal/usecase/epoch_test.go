package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gnsd/internal/domain"
	"gnsd/internal/infra/cache"
	"gnsd/internal/infra/crypto"
)

type epochFixture struct {
	*chainFixture
	epochs    *memEpochs
	relay     *stubRelay
	publisher *Publisher
}

func newEpochFixture(t *testing.T, cfg PublisherConfig) *epochFixture {
	t.Helper()
	cf := newChainFixture(t)
	epochs := newMemEpochs(cf.crumbs)
	relay := newStubRelay()
	publisher := NewPublisher(cf.crumbs, epochs, cf.crypto, NewIdentityLocks(), relay, cache.NewMemory(), cf.clock, discardLogger(), cfg)
	return &epochFixture{
		chainFixture: cf,
		epochs:       epochs,
		relay:        relay,
		publisher:    publisher,
	}
}

func TestPublishConsumesOldestBatch(t *testing.T) {
	f := newEpochFixture(t, PublisherConfig{MinBreadcrumbsPerEpoch: 100, BlockSize: 10})
	ctx := context.Background()
	crumbs := f.appendN(t, 250)

	epoch, err := f.publisher.Publish(ctx, f.identity)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if epoch.EpochIndex != 0 {
		t.Fatalf("epoch index = %d, want 0", epoch.EpochIndex)
	}
	if epoch.PrevEpochHash != nil {
		t.Fatalf("prevEpochHash = %v, want nil", *epoch.PrevEpochHash)
	}
	if epoch.BlockCount != 10 {
		t.Fatalf("block count = %d, want 10", epoch.BlockCount)
	}
	if !epoch.StartTime.Equal(crumbs[0].Timestamp) {
		t.Fatalf("start = %v, want first consumed %v", epoch.StartTime, crumbs[0].Timestamp)
	}
	if !epoch.EndTime.Equal(crumbs[99].Timestamp) {
		t.Fatalf("end = %v, want last consumed %v", epoch.EndTime, crumbs[99].Timestamp)
	}

	pending, err := f.crumbs.ListUnpublished(ctx, f.identity.ID)
	if err != nil {
		t.Fatalf("list unpublished: %v", err)
	}
	if len(pending) != 150 {
		t.Fatalf("%d unpublished after publish, want 150", len(pending))
	}
	if pending[0].Hash != crumbs[100].Hash {
		t.Fatal("wrong breadcrumbs consumed: oldest batch must go first")
	}
}

func TestPublishRequiresMinimum(t *testing.T) {
	f := newEpochFixture(t, PublisherConfig{MinBreadcrumbsPerEpoch: 100, BlockSize: 10})
	f.appendN(t, 99)

	_, err := f.publisher.Publish(context.Background(), f.identity)
	var insufficient *domain.InsufficientBreadcrumbsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientBreadcrumbsError", err)
	}
	if insufficient.Required != 100 || insufficient.Current != 99 {
		t.Fatalf("deficit = %d/%d, want 99/100", insufficient.Current, insufficient.Required)
	}

	pending, err := f.crumbs.ListUnpublished(context.Background(), f.identity.ID)
	if err != nil {
		t.Fatalf("list unpublished: %v", err)
	}
	if len(pending) != 99 {
		t.Fatal("failed publish must not consume breadcrumbs")
	}
}

func TestPublishChainsEpochs(t *testing.T) {
	f := newEpochFixture(t, PublisherConfig{MinBreadcrumbsPerEpoch: 10, BlockSize: 5})
	ctx := context.Background()
	f.appendN(t, 30)

	first, err := f.publisher.Publish(ctx, f.identity)
	if err != nil {
		t.Fatalf("publish first: %v", err)
	}
	second, err := f.publisher.Publish(ctx, f.identity)
	if err != nil {
		t.Fatalf("publish second: %v", err)
	}

	if second.EpochIndex != first.EpochIndex+1 {
		t.Fatalf("second index = %d, want %d", second.EpochIndex, first.EpochIndex+1)
	}
	if second.PrevEpochHash == nil || *second.PrevEpochHash != first.EpochHash {
		t.Fatal("second epoch not linked to first")
	}
	if second.MerkleRoot == first.MerkleRoot {
		t.Fatal("distinct batches produced identical merkle roots")
	}

	listed, err := f.publisher.EpochChain(ctx, f.identity.ID)
	if err != nil {
		t.Fatalf("epoch chain: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("epoch chain length = %d, want 2", len(listed))
	}
}

func TestPublishSignsEpochHash(t *testing.T) {
	f := newEpochFixture(t, PublisherConfig{MinBreadcrumbsPerEpoch: 10, BlockSize: 5})
	f.appendN(t, 10)

	epoch, err := f.publisher.Publish(context.Background(), f.identity)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	expected := fmt.Sprintf("%s|%d|%d|%d|%s|%s",
		f.identity.ID, epoch.EpochIndex,
		epoch.StartTime.Unix(), epoch.EndTime.Unix(),
		epoch.MerkleRoot, domain.GenesisHash)
	if f.crypto.HashHex([]byte(expected)) != epoch.EpochHash {
		t.Fatal("epoch hash does not match its recomputation")
	}
	if !f.crypto.VerifyHex(f.identity.PublicKeyHex, []byte(epoch.EpochHash), epoch.Signature) {
		t.Fatal("epoch signature does not verify")
	}
}

func TestPublishSubmitsToRelay(t *testing.T) {
	f := newEpochFixture(t, PublisherConfig{MinBreadcrumbsPerEpoch: 10, BlockSize: 5})
	f.appendN(t, 10)

	epoch, err := f.publisher.Publish(context.Background(), f.identity)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(f.relay.epochs) != 1 {
		t.Fatalf("relay received %d epochs, want 1", len(f.relay.epochs))
	}
	if f.relay.epochs[0].PKRoot != f.identity.PublicKeyHex {
		t.Fatalf("submitted pkRoot = %s", f.relay.epochs[0].PKRoot)
	}
	if f.relay.epochs[0].Epoch.EpochHash != epoch.EpochHash {
		t.Fatal("submitted epoch does not match committed epoch")
	}
}

func TestPublishSurvivesRelayOutage(t *testing.T) {
	f := newEpochFixture(t, PublisherConfig{MinBreadcrumbsPerEpoch: 10, BlockSize: 5})
	f.relay.unreachable = true
	ctx := context.Background()
	f.appendN(t, 10)

	epoch, err := f.publisher.Publish(ctx, f.identity)
	if err != nil {
		t.Fatalf("publish with relay down: %v", err)
	}

	// The epoch is committed locally; consumed crumbs stay consumed.
	pending, err := f.crumbs.ListUnpublished(ctx, f.identity.ID)
	if err != nil {
		t.Fatalf("list unpublished: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("%d unpublished after local commit, want 0", len(pending))
	}

	// Retry is a pure resubmission of the committed artifact.
	f.relay.unreachable = false
	if err := f.publisher.Submit(ctx, f.identity, *epoch); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if len(f.relay.epochs) != 1 {
		t.Fatalf("relay received %d epochs after retry, want 1", len(f.relay.epochs))
	}
}

func TestPublishTrailingShortBlock(t *testing.T) {
	f := newEpochFixture(t, PublisherConfig{MinBreadcrumbsPerEpoch: 23, BlockSize: 10})
	f.appendN(t, 23)

	epoch, err := f.publisher.Publish(context.Background(), f.identity)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if epoch.BlockCount != 3 {
		t.Fatalf("block count = %d, want 3 (two full, one short)", epoch.BlockCount)
	}
}

func TestPublisherDefaults(t *testing.T) {
	p := NewPublisher(nil, nil, crypto.NewService(), NewIdentityLocks(), nil, nil, nil, nil, PublisherConfig{})
	if p.cfg.MinBreadcrumbsPerEpoch != 100 || p.cfg.BlockSize != 10 {
		t.Fatalf("defaults = %+v", p.cfg)
	}
	if p.Clock().IsZero() {
		t.Fatal("default clock returned zero time")
	}
}
