package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gnsd/internal/domain"
)

// In-memory collaborators for exercising the services without a
// database or relay.

type memCrumbs struct {
	mu     sync.Mutex
	crumbs []domain.Breadcrumb
	owners []string
}

func newMemCrumbs() *memCrumbs {
	return &memCrumbs{}
}

func (m *memCrumbs) Insert(_ context.Context, identityID string, crumb domain.Breadcrumb) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crumbs = append(m.crumbs, crumb)
	m.owners = append(m.owners, identityID)
	return nil
}

func (m *memCrumbs) Head(_ context.Context, identityID string) (*domain.Breadcrumb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.crumbs) - 1; i >= 0; i-- {
		if m.owners[i] == identityID {
			crumb := m.crumbs[i]
			return &crumb, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memCrumbs) ListAll(_ context.Context, identityID string) ([]domain.Breadcrumb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Breadcrumb
	for i, crumb := range m.crumbs {
		if m.owners[i] == identityID {
			out = append(out, crumb)
		}
	}
	return out, nil
}

func (m *memCrumbs) ListUnpublished(_ context.Context, identityID string) ([]domain.Breadcrumb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Breadcrumb
	for i, crumb := range m.crumbs {
		if m.owners[i] == identityID && !crumb.Published {
			out = append(out, crumb)
		}
	}
	return out, nil
}

func (m *memCrumbs) Count(_ context.Context, identityID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for i := range m.crumbs {
		if m.owners[i] == identityID {
			count++
		}
	}
	return count, nil
}

func (m *memCrumbs) CountUniqueCells(_ context.Context, identityID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cells := make(map[string]struct{})
	for i, crumb := range m.crumbs {
		if m.owners[i] == identityID {
			cells[crumb.CellIndex] = struct{}{}
		}
	}
	return int64(len(cells)), nil
}

func (m *memCrumbs) FirstTimestamp(_ context.Context, identityID string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, crumb := range m.crumbs {
		if m.owners[i] == identityID {
			ts := crumb.Timestamp
			return &ts, nil
		}
	}
	return nil, nil
}

func (m *memCrumbs) markPublished(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range m.crumbs {
		if _, ok := set[m.crumbs[i].ID]; ok {
			m.crumbs[i].Published = true
		}
	}
}

// tamper mutates a stored breadcrumb in place, bypassing the append
// path, to simulate storage corruption.
func (m *memCrumbs) tamper(index int, mutate func(*domain.Breadcrumb)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mutate(&m.crumbs[index])
}

type memEpochs struct {
	mu     sync.Mutex
	epochs []domain.Epoch
	crumbs *memCrumbs
}

func newMemEpochs(crumbs *memCrumbs) *memEpochs {
	return &memEpochs{crumbs: crumbs}
}

func (m *memEpochs) Commit(_ context.Context, epoch domain.Epoch, consumedBreadcrumbIDs []string) error {
	m.mu.Lock()
	for _, existing := range m.epochs {
		if existing.EpochHash == epoch.EpochHash {
			m.mu.Unlock()
			return nil
		}
	}
	m.epochs = append(m.epochs, epoch)
	m.mu.Unlock()
	if m.crumbs != nil {
		m.crumbs.markPublished(consumedBreadcrumbIDs)
	}
	return nil
}

func (m *memEpochs) Latest(_ context.Context, identityID string) (*domain.Epoch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Epoch
	for i := range m.epochs {
		if m.epochs[i].IdentityID != identityID {
			continue
		}
		if latest == nil || m.epochs[i].EpochIndex > latest.EpochIndex {
			latest = &m.epochs[i]
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	epoch := *latest
	return &epoch, nil
}

func (m *memEpochs) ListByIdentity(_ context.Context, identityID string) ([]domain.Epoch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Epoch
	for _, epoch := range m.epochs {
		if epoch.IdentityID == identityID {
			out = append(out, epoch)
		}
	}
	return out, nil
}

func (m *memEpochs) Count(_ context.Context, identityID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, epoch := range m.epochs {
		if epoch.IdentityID == identityID {
			count++
		}
	}
	return count, nil
}

type memIdentities struct {
	mu         sync.Mutex
	identities map[string]domain.Identity
}

func newMemIdentities() *memIdentities {
	return &memIdentities{identities: make(map[string]domain.Identity)}
}

func (m *memIdentities) Insert(_ context.Context, identity domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.identities {
		if existing.PublicKeyHex == identity.PublicKeyHex {
			return domain.ErrIdentityExists
		}
	}
	m.identities[identity.ID] = identity
	return nil
}

func (m *memIdentities) Get(_ context.Context, id string) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &identity, nil
}

func (m *memIdentities) GetByPublicKey(_ context.Context, publicKeyHex string) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.identities {
		if identity.PublicKeyHex == publicKeyHex {
			found := identity
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memIdentities) List(_ context.Context) ([]domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Identity, 0, len(m.identities))
	for _, identity := range m.identities {
		out = append(out, identity)
	}
	return out, nil
}

func (m *memIdentities) UpdateHandleStatus(_ context.Context, id string, status domain.HandleStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return domain.ErrNotFound
	}
	identity.HandleStatus = status
	m.identities[id] = identity
	return nil
}

func (m *memIdentities) UpdateCounters(_ context.Context, id string, breadcrumbCount int64, trustScore float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return domain.ErrNotFound
	}
	identity.BreadcrumbCount = breadcrumbCount
	identity.CachedTrustScore = trustScore
	m.identities[id] = identity
	return nil
}

func (m *memIdentities) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.identities, id)
	return nil
}

type stubRelay struct {
	mu           sync.Mutex
	available    bool
	unreachable  bool
	conflictOn   map[string]bool
	reservations []domain.Reservation
	claims       []domain.HandleClaim
	releases     []domain.Release
	epochs       []domain.SignedEpoch
	records      []domain.SignedRecord
	remoteEpochs []domain.Epoch
}

func newStubRelay() *stubRelay {
	return &stubRelay{available: true, conflictOn: make(map[string]bool)}
}

func (r *stubRelay) IsHandleAvailable(_ context.Context, handle string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable {
		return false, domain.ErrRelayUnavailable
	}
	return r.available, nil
}

func (r *stubRelay) SubmitReservation(_ context.Context, reservation domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable {
		return domain.ErrRelayUnavailable
	}
	if r.conflictOn[reservation.Handle] {
		return domain.ErrHandleTaken
	}
	r.reservations = append(r.reservations, reservation)
	return nil
}

func (r *stubRelay) SubmitClaim(_ context.Context, claim domain.HandleClaim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable {
		return domain.ErrRelayUnavailable
	}
	if r.conflictOn[claim.Handle] {
		return domain.ErrHandleTaken
	}
	r.claims = append(r.claims, claim)
	return nil
}

func (r *stubRelay) SubmitRelease(_ context.Context, release domain.Release) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable {
		return domain.ErrRelayUnavailable
	}
	r.releases = append(r.releases, release)
	return nil
}

func (r *stubRelay) PublishEpoch(_ context.Context, epoch domain.SignedEpoch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable {
		return domain.ErrRelayUnavailable
	}
	r.epochs = append(r.epochs, epoch)
	return nil
}

func (r *stubRelay) FetchEpochs(_ context.Context, identityPublicKey string) ([]domain.Epoch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable {
		return nil, domain.ErrRelayUnavailable
	}
	return r.remoteEpochs, nil
}

func (r *stubRelay) PublishRecord(_ context.Context, record domain.SignedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable {
		return domain.ErrRelayUnavailable
	}
	r.records = append(r.records, record)
	return nil
}

type fixedProvider struct {
	sample domain.LocationSample
	err    error
}

func (p *fixedProvider) Sample(context.Context) (domain.LocationSample, error) {
	if p.err != nil {
		return domain.LocationSample{}, p.err
	}
	return p.sample, nil
}

type gridQuantizer struct{}

func (gridQuantizer) CellIndex(lat, lng float64, resolution uint8) (string, error) {
	if resolution < domain.MinCellResolution || resolution > domain.MaxCellResolution {
		return "", &domain.ValidationError{Field: "resolution", Reason: "out of range"}
	}
	return fmt.Sprintf("cell-%.2f-%.2f-r%d", lat, lng, resolution), nil
}
