package identity

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/erp/console/internal/domain/identity"
	"github.com/erp/console/internal/domain/shared"
)

// TenantObserver is notified with the newly active company after a
// switch so scoped data consumers can re-fetch under the new id.
type TenantObserver func(identity.Company)

// TenantScope tracks the companies the current identity may access
// and the single active company. It is the exclusive writer of the
// active-company selection; every company-scoped read and write
// consults it.
//
// The switch operation replaces the active company atomically: no
// observer can see a state where a stale company id pairs with data
// fetched under the new one.
type TenantScope struct {
	cache  SessionCache // optional, persists the selection
	logger *zap.Logger

	mu        sync.Mutex
	companies []identity.Company
	current   *identity.Company
	nextID    uint64
	order     []uint64
	subs      map[uint64]TenantObserver

	// notifyMu serializes deliveries across notification rounds
	notifyMu sync.Mutex
}

// NewTenantScope creates an empty tenant scope. cache may be nil.
func NewTenantScope(cache SessionCache, logger *zap.Logger) *TenantScope {
	return &TenantScope{
		cache:  cache,
		logger: logger,
		subs:   make(map[uint64]TenantObserver),
	}
}

// Load seeds the accessible-company list from a fresh identity. The
// active company becomes the first preferred id found in the list,
// falling back to the first company. A single-company identity has
// nothing to switch to but keeps the same uniform state.
func (t *TenantScope) Load(companies []identity.Company, preferredIDs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.companies = make([]identity.Company, len(companies))
	copy(t.companies, companies)

	t.current = nil
	for _, id := range preferredIDs {
		if company := findCompany(t.companies, id); company != nil {
			t.current = company
			return
		}
	}
	if len(t.companies) > 0 {
		first := t.companies[0]
		t.current = &first
	}
}

// Reset clears the scope, used on sign-out
func (t *TenantScope) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.companies = nil
	t.current = nil
}

// Companies returns a copy of the accessible companies in order
func (t *TenantScope) Companies() []identity.Company {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]identity.Company, len(t.companies))
	copy(out, t.companies)
	return out
}

// Current returns the active company, or nil when none is selected
func (t *TenantScope) Current() *identity.Company {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	company := *t.current
	return &company
}

// Subscribe registers an observer for company switches and returns
// its unsubscribe function.
func (t *TenantScope) Subscribe(fn TenantObserver) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.order = append(t.order, id)
	t.subs[id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
		for i, other := range t.order {
			if other == id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
}

// SwitchCompany atomically redirects all subsequent scoped reads and
// writes to the given company and signals consumers to re-fetch.
// Switching to the already-active company is a no-op success; an id
// outside the accessible list returns TENANT_NOT_FOUND and leaves the
// selection unchanged.
func (t *TenantScope) SwitchCompany(ctx context.Context, companyID string) error {
	t.mu.Lock()

	if t.current != nil && t.current.ID == companyID {
		t.mu.Unlock()
		return nil
	}

	company := findCompany(t.companies, companyID)
	if company == nil {
		t.mu.Unlock()
		return shared.NewDomainError("TENANT_NOT_FOUND", "Company "+companyID+" is not in your accessible companies")
	}

	t.current = company
	round := make([]uint64, len(t.order))
	copy(round, t.order)
	switched := *company
	t.mu.Unlock()

	go t.notify(round)

	t.logger.Info("Active company switched",
		zap.String("company_id", switched.ID),
		zap.String("company_name", switched.CompanyName))

	// Persistence failure must not undo an already-committed switch
	if t.cache != nil {
		if err := t.cache.SaveActiveCompany(ctx, switched.ID); err != nil {
			t.logger.Warn("Failed to persist company selection", zap.Error(err))
		}
	}

	return nil
}

// notify delivers one round in subscription order. Deliveries are
// serialized across rounds and the active company is re-read under the
// lock immediately before each callback, so the last delivery any
// observer receives names the company active at that moment; a stale
// snapshot can never arrive after a newer one.
func (t *TenantScope) notify(round []uint64) {
	for _, id := range round {
		t.notifyMu.Lock()
		t.mu.Lock()
		fn, ok := t.subs[id]
		var company identity.Company
		if t.current != nil {
			company = *t.current
		} else {
			ok = false
		}
		t.mu.Unlock()
		if ok {
			fn(company)
		}
		t.notifyMu.Unlock()
	}
}

func findCompany(companies []identity.Company, id string) *identity.Company {
	for i := range companies {
		if companies[i].ID == id {
			company := companies[i]
			return &company
		}
	}
	return nil
}
