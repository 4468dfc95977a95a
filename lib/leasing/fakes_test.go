// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package leasing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandpool-project/sandpool/lib/clock"
	"github.com/sandpool-project/sandpool/lib/schema"
	"github.com/sandpool-project/sandpool/lib/store"
)

// memLeaseStore is an in-memory LeaseStore with the same versioning
// behavior as the SQLite implementation, plus failure injection and
// call counting for rollback assertions.
type memLeaseStore struct {
	mu      sync.Mutex
	records map[schema.LeaseKey]*schema.Lease

	updates    int
	failUpdate error
}

func newMemLeaseStore() *memLeaseStore {
	return &memLeaseStore{records: map[schema.LeaseKey]*schema.Lease{}}
}

func (m *memLeaseStore) Get(ctx context.Context, key schema.LeaseKey) (*schema.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lease, ok := m.records[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *lease
	return &copied, nil
}

func (m *memLeaseStore) Create(ctx context.Context, lease *schema.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[lease.Key()]; ok {
		return store.ErrAlreadyExists
	}
	lease.Version = 1
	copied := *lease
	m.records[lease.Key()] = &copied
	return nil
}

func (m *memLeaseStore) Update(ctx context.Context, lease *schema.Lease) (*store.PutResult[schema.Lease], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.failUpdate != nil {
		return nil, m.failUpdate
	}
	old, ok := m.records[lease.Key()]
	if !ok {
		return nil, store.ErrNotFound
	}
	if old.Version != lease.Version {
		return nil, store.ErrVersionConflict
	}
	oldCopy := *old
	updated := *lease
	updated.Version = old.Version + 1
	m.records[lease.Key()] = &updated
	result := updated
	return &store.PutResult[schema.Lease]{NewItem: &result, OldItem: &oldCopy}, nil
}

func (m *memLeaseStore) Delete(ctx context.Context, key schema.LeaseKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		return store.ErrNotFound
	}
	delete(m.records, key)
	return nil
}

func (m *memLeaseStore) ListByUser(ctx context.Context, userEmail string) ([]*schema.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*schema.Lease
	for _, lease := range m.records {
		if lease.UserEmail == userEmail {
			copied := *lease
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memLeaseStore) ListByStatus(ctx context.Context, statuses ...schema.LeaseStatus) ([]*schema.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*schema.Lease
	for _, lease := range m.records {
		for _, status := range statuses {
			if lease.Status == status {
				copied := *lease
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}

func (m *memLeaseStore) ListByStatusAndAccount(ctx context.Context, awsAccountID string, statuses ...schema.LeaseStatus) ([]*schema.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*schema.Lease
	for _, lease := range m.records {
		if lease.AWSAccountID != awsAccountID {
			continue
		}
		for _, status := range statuses {
			if lease.Status == status {
				copied := *lease
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}

func (m *memLeaseStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for key, lease := range m.records {
		if lease.TTL > 0 && lease.TTL <= now.Unix() {
			delete(m.records, key)
			purged++
		}
	}
	return purged, nil
}

// memAccountStore mirrors memLeaseStore for accounts.
type memAccountStore struct {
	mu      sync.Mutex
	records map[string]*schema.Account

	updates    int
	failUpdate error
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{records: map[string]*schema.Account{}}
}

func (m *memAccountStore) Get(ctx context.Context, awsAccountID string) (*schema.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.records[awsAccountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *memAccountStore) Create(ctx context.Context, account *schema.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[account.AWSAccountID]; ok {
		return store.ErrAlreadyExists
	}
	account.Version = 1
	copied := *account
	m.records[account.AWSAccountID] = &copied
	return nil
}

func (m *memAccountStore) Update(ctx context.Context, account *schema.Account) (*store.PutResult[schema.Account], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.failUpdate != nil {
		return nil, m.failUpdate
	}
	old, ok := m.records[account.AWSAccountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if old.Version != account.Version {
		return nil, store.ErrVersionConflict
	}
	oldCopy := *old
	updated := *account
	updated.Version = old.Version + 1
	m.records[account.AWSAccountID] = &updated
	result := updated
	return &store.PutResult[schema.Account]{NewItem: &result, OldItem: &oldCopy}, nil
}

func (m *memAccountStore) Delete(ctx context.Context, awsAccountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[awsAccountID]; !ok {
		return store.ErrNotFound
	}
	delete(m.records, awsAccountID)
	return nil
}

func (m *memAccountStore) ListByStatus(ctx context.Context, statuses ...schema.AccountStatus) ([]*schema.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*schema.Account
	for _, account := range m.records {
		for _, status := range statuses {
			if account.Status == status {
				copied := *account
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}

// memTemplateStore mirrors memLeaseStore for templates.
type memTemplateStore struct {
	mu      sync.Mutex
	records map[string]*schema.LeaseTemplate
}

func newMemTemplateStore() *memTemplateStore {
	return &memTemplateStore{records: map[string]*schema.LeaseTemplate{}}
}

func (m *memTemplateStore) Get(ctx context.Context, uuid string) (*schema.LeaseTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	template, ok := m.records[uuid]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *template
	return &copied, nil
}

func (m *memTemplateStore) Create(ctx context.Context, template *schema.LeaseTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[template.UUID]; ok {
		return store.ErrAlreadyExists
	}
	template.Version = 1
	copied := *template
	m.records[template.UUID] = &copied
	return nil
}

func (m *memTemplateStore) Update(ctx context.Context, template *schema.LeaseTemplate) (*store.PutResult[schema.LeaseTemplate], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.records[template.UUID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if old.Version != template.Version {
		return nil, store.ErrVersionConflict
	}
	oldCopy := *old
	updated := *template
	updated.Version = old.Version + 1
	m.records[template.UUID] = &updated
	result := updated
	return &store.PutResult[schema.LeaseTemplate]{NewItem: &result, OldItem: &oldCopy}, nil
}

func (m *memTemplateStore) Delete(ctx context.Context, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[uuid]; !ok {
		return store.ErrNotFound
	}
	delete(m.records, uuid)
	return nil
}

func (m *memTemplateStore) List(ctx context.Context) ([]*schema.LeaseTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*schema.LeaseTemplate
	for _, template := range m.records {
		copied := *template
		out = append(out, &copied)
	}
	return out, nil
}

// fakeMover tracks placements by account ID and verifies the expected
// placement on Move, like the Organizations-backed mover.
type fakeMover struct {
	mu        sync.Mutex
	placement map[string]schema.AccountStatus
	moves     []string
}

func newFakeMover() *fakeMover {
	return &fakeMover{placement: map[string]schema.AccountStatus{}}
}

func (f *fakeMover) Move(ctx context.Context, account *schema.Account, expected, target schema.AccountStatus) (*schema.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	actual, ok := f.placement[account.AWSAccountID]
	if !ok || actual != expected {
		return nil, &MovePreconditionError{
			AWSAccountID: account.AWSAccountID,
			Expected:     expected,
			Actual:       actual,
		}
	}
	f.placement[account.AWSAccountID] = target
	f.moves = append(f.moves, fmt.Sprintf("%s:%s->%s", account.AWSAccountID, expected, target))
	moved := *account
	moved.Status = target
	return &moved, nil
}

func (f *fakeMover) PerformMove(ctx context.Context, awsAccountID string, current, target schema.AccountStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placement[awsAccountID] = target
	f.moves = append(f.moves, fmt.Sprintf("%s:%s->%s", awsAccountID, current, target))
	return nil
}

func (f *fakeMover) placementOf(awsAccountID string) schema.AccountStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.placement[awsAccountID]
}

// fakeAccess tracks user and group grants per account.
type fakeAccess struct {
	mu          sync.Mutex
	users       map[string]*schema.User
	userGrants  map[string]map[string]bool
	groupGrants map[string]map[string]bool
}

func newFakeAccess() *fakeAccess {
	return &fakeAccess{
		users:       map[string]*schema.User{},
		userGrants:  map[string]map[string]bool{},
		groupGrants: map[string]map[string]bool{},
	}
}

func (f *fakeAccess) addUser(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = &schema.User{UserID: "uid-" + email, Email: email}
}

func (f *fakeAccess) GrantUserAccess(ctx context.Context, awsAccountID, userEmail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userGrants[awsAccountID] == nil {
		f.userGrants[awsAccountID] = map[string]bool{}
	}
	f.userGrants[awsAccountID][userEmail] = true
	return nil
}

func (f *fakeAccess) RevokeAllUserAccess(ctx context.Context, awsAccountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.userGrants, awsAccountID)
	return nil
}

func (f *fakeAccess) AssignGroupAccess(ctx context.Context, awsAccountID string, groups ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groupGrants[awsAccountID] == nil {
		f.groupGrants[awsAccountID] = map[string]bool{}
	}
	for _, group := range groups {
		f.groupGrants[awsAccountID][group] = true
	}
	return nil
}

func (f *fakeAccess) RevokeGroupAccess(ctx context.Context, awsAccountID string, groups ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, group := range groups {
		delete(f.groupGrants[awsAccountID], group)
	}
	return nil
}

func (f *fakeAccess) GetUserFromEmail(ctx context.Context, email string) (*schema.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[email], nil
}

func (f *fakeAccess) userHasAccess(awsAccountID, email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userGrants[awsAccountID][email]
}

func (f *fakeAccess) groupHasAccess(awsAccountID, group string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupGrants[awsAccountID][group]
}

// fakeEvents collects published events.
type fakeEvents struct {
	mu     sync.Mutex
	events []schema.Event
}

func (f *fakeEvents) Publish(ctx context.Context, events ...schema.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeEvents) ofType(eventType schema.EventType) []schema.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []schema.Event
	for _, event := range f.events {
		if event.EventType() == eventType {
			out = append(out, event)
		}
	}
	return out
}

// fakeBlueprints accepts every blueprint unless told otherwise.
type fakeBlueprints struct {
	mu          sync.Mutex
	validateErr error
	deleted     []string
}

func (f *fakeBlueprints) ValidateForDeployment(ctx context.Context, blueprintID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateErr
}

func (f *fakeBlueprints) DeleteStackInstancesMetadata(ctx context.Context, blueprintID, awsAccountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, blueprintID+"/"+awsAccountID)
	return nil
}

// harness wires a Service over the in-memory fakes.
type harness struct {
	service    *Service
	clock      *clock.FakeClock
	leases     *memLeaseStore
	accounts   *memAccountStore
	templates  *memTemplateStore
	mover      *fakeMover
	access     *fakeAccess
	events     *fakeEvents
	blueprints *fakeBlueprints
}

func newHarness(t interface{ Fatal(...any) }) *harness {
	h := &harness{
		clock:      clock.Fake(time.Unix(1700000000, 0)),
		leases:     newMemLeaseStore(),
		accounts:   newMemAccountStore(),
		templates:  newMemTemplateStore(),
		mover:      newFakeMover(),
		access:     newFakeAccess(),
		events:     &fakeEvents{},
		blueprints: &fakeBlueprints{},
	}
	service, err := New(Config{
		Leases:     h.leases,
		Accounts:   h.accounts,
		Templates:  h.templates,
		Mover:      h.mover,
		Access:     h.access,
		Events:     h.events,
		Blueprints: h.blueprints,
		Clock:      h.clock,
	})
	if err != nil {
		t.Fatal(err)
	}
	h.service = service
	return h
}

// seedAccount creates an account record and the matching placement.
func (h *harness) seedAccount(awsAccountID string, status schema.AccountStatus) *schema.Account {
	account := &schema.Account{
		AWSAccountID: awsAccountID,
		Status:       status,
		Email:        "pool+" + awsAccountID + "@example.com",
		Name:         "pool-" + awsAccountID,
	}
	if err := h.accounts.Create(context.Background(), account); err != nil {
		panic(err)
	}
	h.mover.placement[awsAccountID] = status
	return account
}

// seedLease creates a lease record directly in the given status.
func (h *harness) seedLease(userEmail, uuid string, status schema.LeaseStatus, awsAccountID string) *schema.Lease {
	lease := &schema.Lease{
		UserEmail:                 userEmail,
		UUID:                      uuid,
		Status:                    status,
		OriginalLeaseTemplateUUID: "tmpl-seed",
		OriginalLeaseTemplateName: "seed",
		AWSAccountID:              awsAccountID,
	}
	if err := h.leases.Create(context.Background(), lease); err != nil {
		panic(err)
	}
	return lease
}

// seedTemplate stores a template.
func (h *harness) seedTemplate(uuid string, requiresApproval bool) *schema.LeaseTemplate {
	template := &schema.LeaseTemplate{
		UUID:             uuid,
		Name:             "template-" + uuid,
		RequiresApproval: requiresApproval,
	}
	if err := h.templates.Create(context.Background(), template); err != nil {
		panic(err)
	}
	return template
}
