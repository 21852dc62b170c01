// Package memstore is an in-memory store.Store for tests and local runs.
// Transactions work on a copy of the state that replaces the original on commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/internal/store"
)

type state struct {
	orgs   map[string]models.Organization
	users  map[uuid.UUID]models.User
	subs   map[uuid.UUID]models.Subscription
	comms  map[uuid.UUID]models.CommunicationLog
	audits []models.AuditLog
	logs   map[string]models.WebhookLog
}

func newState() *state {
	return &state{
		orgs:  make(map[string]models.Organization),
		users: make(map[uuid.UUID]models.User),
		subs:  make(map[uuid.UUID]models.Subscription),
		comms: make(map[uuid.UUID]models.CommunicationLog),
		logs:  make(map[string]models.WebhookLog),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.orgs {
		c.orgs[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.subs {
		c.subs[k] = v
	}
	for k, v := range s.comms {
		c.comms[k] = v
	}
	c.audits = append([]models.AuditLog(nil), s.audits...)
	for k, v := range s.logs {
		c.logs[k] = v
	}
	return c
}

// Store implements store.Store in memory.
type Store struct {
	mu    sync.Mutex
	st    *state
	now   func() time.Time
	fails map[string]error
}

var _ store.Store = (*Store)(nil)

// New creates an empty store using the wall clock.
func New() *Store {
	return &Store{st: newState(), now: time.Now, fails: make(map[string]error)}
}

// SetClock replaces the clock used for created_at and updated_at.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailOn makes the named Tx method return err until cleared with a nil err.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fails, method)
		return
	}
	s.fails[method] = err
}

// AddOrganization inserts a tenant directly.
func (s *Store) AddOrganization(slug, name string) models.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	org := models.Organization{ID: uuid.New(), Name: name, Slug: slug, CreatedAt: now, UpdatedAt: now}
	s.st.orgs[slug] = org
	return org
}

func (s *Store) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fails["IsProcessed"]; err != nil {
		return false, err
	}
	_, ok := s.st.logs[eventID]
	return ok, nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{st: s.st.clone(), now: s.now, fails: s.fails}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) RecordFailure(ctx context.Context, l *models.WebhookLog) error {
	return s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.CreateWebhookLog(ctx, l)
	})
}

// Latest returns the newest log row for service with status, or nil.
func (s *Store) Latest(_ context.Context, service string, status models.WebhookStatus) (*models.WebhookLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.WebhookLog
	for _, l := range s.st.logs {
		if l.Service != service || l.Status != status {
			continue
		}
		if latest == nil || l.CreatedAt.After(latest.CreatedAt) {
			cp := l
			latest = &cp
		}
	}
	return latest, nil
}

// Users returns every user ordered by creation time.
func (s *Store) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.st.users))
	for _, u := range s.st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Subscriptions returns every subscription.
func (s *Store) Subscriptions() []models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Subscription, 0, len(s.st.subs))
	for _, v := range s.st.subs {
		out = append(out, v)
	}
	return out
}

// CommunicationLogs returns every communication log.
func (s *Store) CommunicationLogs() []models.CommunicationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CommunicationLog, 0, len(s.st.comms))
	for _, v := range s.st.comms {
		out = append(out, v)
	}
	return out
}

// AuditLogs returns audit rows in insertion order.
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditLog(nil), s.st.audits...)
}

// WebhookLogs returns every log row.
func (s *Store) WebhookLogs() []models.WebhookLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WebhookLog, 0, len(s.st.logs))
	for _, v := range s.st.logs {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// WebhookLog returns the row for eventID, or nil.
func (s *Store) WebhookLog(eventID string) *models.WebhookLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.st.logs[eventID]
	if !ok {
		return nil
	}
	return &l
}

type memTx struct {
	st    *state
	now   func() time.Time
	fails map[string]error
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) fail(method string) error {
	return t.fails[method]
}

func (t *memTx) OrganizationBySlug(_ context.Context, slug string) (*models.Organization, error) {
	if err := t.fail("OrganizationBySlug"); err != nil {
		return nil, err
	}
	org, ok := t.st.orgs[slug]
	if !ok {
		return nil, nil
	}
	return &org, nil
}

func (t *memTx) UserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	if err := t.fail("UserByExternalID"); err != nil {
		return nil, err
	}
	for _, u := range t.st.users {
		if u.ExternalID != nil && *u.ExternalID == externalID {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) UserByEmail(_ context.Context, email string) (*models.User, error) {
	if err := t.fail("UserByEmail"); err != nil {
		return nil, err
	}
	for _, u := range t.st.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) checkUserUnique(u *models.User) error {
	for id, other := range t.st.users {
		if id == u.ID {
			continue
		}
		if other.Email == u.Email {
			return fmt.Errorf("duplicate email %q", u.Email)
		}
		if u.ExternalID != nil && other.ExternalID != nil && *other.ExternalID == *u.ExternalID {
			return fmt.Errorf("duplicate external_id %q", *u.ExternalID)
		}
	}
	return nil
}

func (t *memTx) CreateUser(_ context.Context, u *models.User) error {
	if err := t.fail("CreateUser"); err != nil {
		return err
	}
	if err := t.checkUserUnique(u); err != nil {
		return err
	}
	u.ID = uuid.New()
	u.CreatedAt = t.now()
	u.UpdatedAt = u.CreatedAt
	t.st.users[u.ID] = *u
	return nil
}

func (t *memTx) UpdateUser(_ context.Context, u *models.User) error {
	if err := t.fail("UpdateUser"); err != nil {
		return err
	}
	if _, ok := t.st.users[u.ID]; !ok {
		return fmt.Errorf("user %s not found", u.ID)
	}
	if err := t.checkUserUnique(u); err != nil {
		return err
	}
	u.UpdatedAt = t.now()
	t.st.users[u.ID] = *u
	return nil
}

func (t *memTx) SubscriptionByExternalID(_ context.Context, externalID string) (*models.Subscription, error) {
	if err := t.fail("SubscriptionByExternalID"); err != nil {
		return nil, err
	}
	for _, s := range t.st.subs {
		if s.ExternalSubscriptionID == externalID {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) CreateSubscription(_ context.Context, s *models.Subscription) error {
	if err := t.fail("CreateSubscription"); err != nil {
		return err
	}
	if _, ok := t.st.users[s.UserID]; !ok {
		return fmt.Errorf("subscription owner %s does not exist", s.UserID)
	}
	for _, other := range t.st.subs {
		if other.ExternalSubscriptionID == s.ExternalSubscriptionID {
			return fmt.Errorf("duplicate external_subscription_id %q", s.ExternalSubscriptionID)
		}
	}
	s.ID = uuid.New()
	s.CreatedAt = t.now()
	s.UpdatedAt = s.CreatedAt
	t.st.subs[s.ID] = *s
	return nil
}

func (t *memTx) UpdateSubscription(_ context.Context, s *models.Subscription) error {
	if err := t.fail("UpdateSubscription"); err != nil {
		return err
	}
	if _, ok := t.st.subs[s.ID]; !ok {
		return fmt.Errorf("subscription %s not found", s.ID)
	}
	s.UpdatedAt = t.now()
	t.st.subs[s.ID] = *s
	return nil
}

func (t *memTx) CommunicationLogByMessageID(_ context.Context, messageID string) (*models.CommunicationLog, error) {
	if err := t.fail("CommunicationLogByMessageID"); err != nil {
		return nil, err
	}
	for _, l := range t.st.comms {
		if l.MessageID == messageID {
			cp := l
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) CreateCommunicationLog(_ context.Context, l *models.CommunicationLog) error {
	if err := t.fail("CreateCommunicationLog"); err != nil {
		return err
	}
	for _, other := range t.st.comms {
		if other.MessageID == l.MessageID {
			return fmt.Errorf("duplicate message_id %q", l.MessageID)
		}
	}
	l.ID = uuid.New()
	l.CreatedAt = t.now()
	l.UpdatedAt = l.CreatedAt
	t.st.comms[l.ID] = *l
	return nil
}

func (t *memTx) UpdateCommunicationLog(_ context.Context, l *models.CommunicationLog) error {
	if err := t.fail("UpdateCommunicationLog"); err != nil {
		return err
	}
	if _, ok := t.st.comms[l.ID]; !ok {
		return fmt.Errorf("communication log %s not found", l.ID)
	}
	l.UpdatedAt = t.now()
	t.st.comms[l.ID] = *l
	return nil
}

func (t *memTx) Audit(_ context.Context, action models.AuditAction, userID, orgID *uuid.UUID) error {
	if err := t.fail("Audit"); err != nil {
		return err
	}
	t.st.audits = append(t.st.audits, models.AuditLog{
		ID: uuid.New(), Action: action, UserID: userID, OrgID: orgID, CreatedAt: t.now(),
	})
	return nil
}

func (t *memTx) CreateWebhookLog(_ context.Context, l *models.WebhookLog) error {
	if err := t.fail("CreateWebhookLog"); err != nil {
		return err
	}
	if _, ok := t.st.logs[l.EventID]; ok {
		return fmt.Errorf("%w: %s", store.ErrDuplicateEvent, l.EventID)
	}
	l.ID = uuid.New()
	l.CreatedAt = t.now()
	t.st.logs[l.EventID] = *l
	return nil
}
