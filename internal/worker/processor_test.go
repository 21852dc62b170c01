package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-platform/integrations/internal/adapters"
	"github.com/aura-platform/integrations/internal/events"
	"github.com/aura-platform/integrations/internal/events/eventstest"
	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/internal/store"
	"github.com/aura-platform/integrations/internal/store/memstore"
	"github.com/aura-platform/integrations/pkg/queue"
)

func newProcessor(st store.Store, faults *adapters.FaultInjector, maxRetries int) *Processor {
	return NewProcessor(ProcessorConfig{
		Store:      st,
		Users:      adapters.NewIdentity(faults, nil),
		Billing:    adapters.NewBilling(faults, nil),
		Messaging:  adapters.NewMessaging(faults, nil),
		Retry:      ExponentialBackoff{Base: 2},
		MaxRetries: maxRetries,
	})
}

func seeded() *memstore.Store {
	st := memstore.New()
	st.AddOrganization("org_001", "TechCorp")
	return st
}

func task(service events.Service, raw []byte) *queue.Task {
	return queue.NewTask(string(service), raw)
}

// racingStore hides existing rows from the idempotency check, as if another
// worker committed between the check and the insert.
type racingStore struct {
	*memstore.Store
}

func (racingStore) IsProcessed(context.Context, string) (bool, error) { return false, nil }

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff{Base: 2}
	assert.Equal(t, time.Second, b.NextDelay(0))
	assert.Equal(t, 2*time.Second, b.NextDelay(1))
	assert.Equal(t, 4*time.Second, b.NextDelay(2))
	assert.Equal(t, 8*time.Second, b.NextDelay(3))
	assert.Equal(t, 9*time.Second, ExponentialBackoff{Base: 3}.NextDelay(2))
}

func TestProcessUserCreatedThenResubmitted(t *testing.T) {
	ctx := context.Background()
	st := seeded()
	p := newProcessor(st, nil, 3)
	raw := eventstest.UserCreated("E1", "org_001", "ext_user_12345", "sarah.johnson@techcorp.com")

	out := p.Process(ctx, task(events.ServiceIdentity, raw))
	assert.Equal(t, Completed{Status: models.WebhookProcessed}, out)

	users := st.Users()
	require.Len(t, users, 1)
	assert.Equal(t, models.UserStatusPending, users[0].Status)
	logs := st.WebhookLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "E1", logs[0].EventID)
	assert.Equal(t, "user_service", logs[0].Service)
	assert.Equal(t, "org_001", logs[0].OrgID)
	assert.Equal(t, models.WebhookProcessed, logs[0].Status)
	assert.Equal(t, 1, logs[0].Attempts)
	assert.JSONEq(t, string(raw), string(logs[0].Payload))
	audits := st.AuditLogs()
	require.Len(t, audits, 1)
	assert.Equal(t, models.AuditCreatedUser, audits[0].Action)

	out = p.Process(ctx, task(events.ServiceIdentity, raw))
	assert.Equal(t, Duplicate{}, out)
	assert.Len(t, st.Users(), 1)
	assert.Len(t, st.WebhookLogs(), 1)
	assert.Len(t, st.AuditLogs(), 1)
}

func TestProcessBusinessErrorIsLoggedAsProcessed(t *testing.T) {
	st := seeded()
	p := newProcessor(st, nil, 3)

	out := p.Process(context.Background(), task(events.ServiceIdentity,
		eventstest.UserCreated("E9", "org_001", adapters.MissingUserID, "ghost@techcorp.com")))
	assert.Equal(t, Completed{Status: models.WebhookProcessed}, out)
	assert.Empty(t, st.Users())
	assert.Empty(t, st.AuditLogs())

	l := st.WebhookLog("E9")
	require.NotNil(t, l)
	require.NotNil(t, l.Error)
	assert.Contains(t, *l.Error, "USER_NOT_FOUND")
}

func TestProcessPaymentFailureOnMissingSubscriptionIsSkipped(t *testing.T) {
	ctx := context.Background()
	st := seeded()
	p := newProcessor(st, nil, 3)
	require.Equal(t, Completed{Status: models.WebhookProcessed}, p.Process(ctx, task(events.ServiceIdentity,
		eventstest.UserCreated("E1", "org_001", "cust_67890", "billing@techcorp.com"))))
	auditsBefore := len(st.AuditLogs())

	out := p.Process(ctx, task(events.ServiceBilling,
		eventstest.PaymentFailed("P1", "org_001", "sub_missing", "")))
	assert.Equal(t, Completed{Status: models.WebhookSkipped}, out)
	assert.Empty(t, st.Subscriptions())
	assert.Len(t, st.AuditLogs(), auditsBefore)

	l := st.WebhookLog("P1")
	require.NotNil(t, l)
	assert.Equal(t, models.WebhookSkipped, l.Status)
	require.NotNil(t, l.Error)
	assert.Equal(t, "subscription not found", *l.Error)
}

func TestProcessRetriesWithBackoffThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	st := seeded()
	p := newProcessor(st, adapters.NewFaultInjector(100, false), 3)
	tk := task(events.ServiceIdentity, eventstest.UserCreated("E2", "org_001", "ext_user_1", "a@techcorp.com"))

	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		tk.Attempt = attempt
		out := p.Process(ctx, tk)
		r, ok := out.(Retry)
		require.True(t, ok, "attempt %d: got %T", attempt, out)
		assert.Equal(t, want, r.Delay)
		assert.True(t, adapters.IsTransient(r.Err))
		assert.Nil(t, st.WebhookLog("E2"))
	}

	tk.Attempt = 3
	out := p.Process(ctx, tk)
	_, ok := out.(DeadLetter)
	require.True(t, ok, "got %T", out)

	l := st.WebhookLog("E2")
	require.NotNil(t, l)
	assert.Equal(t, models.WebhookFailed, l.Status)
	assert.Equal(t, 4, l.Attempts)
	require.NotNil(t, l.Error)
	assert.Contains(t, *l.Error, "forced simulated failure")
	assert.Empty(t, st.Users())
}

func TestProcessRecoversAfterForcedFailures(t *testing.T) {
	ctx := context.Background()
	st := seeded()
	p := newProcessor(st, adapters.NewFaultInjector(2, false), 3)
	tk := task(events.ServiceMessaging, eventstest.MessageDelivered("M1", "org_001", "msg_1", "x@example.com"))

	assert.IsType(t, Retry{}, p.Process(ctx, tk))
	tk.Attempt++
	assert.IsType(t, Retry{}, p.Process(ctx, tk))
	tk.Attempt++
	assert.Equal(t, Completed{Status: models.WebhookProcessed}, p.Process(ctx, tk))
	assert.Equal(t, 3, st.WebhookLog("M1").Attempts)
}

func TestProcessStoreErrorRollsBackAndRetries(t *testing.T) {
	st := seeded()
	st.FailOn("CreateWebhookLog", errors.New("connection reset"))
	p := newProcessor(st, nil, 3)

	out := p.Process(context.Background(), task(events.ServiceIdentity,
		eventstest.UserCreated("E3", "org_001", "ext_user_3", "c@techcorp.com")))
	r, ok := out.(Retry)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, time.Second, r.Delay)
	assert.Empty(t, st.Users())
	assert.Empty(t, st.AuditLogs())
}

func TestProcessRetriesWhenFailedRowCannotBeWritten(t *testing.T) {
	ctx := context.Background()
	st := seeded()
	p := newProcessor(st, adapters.NewFaultInjector(100, false), 0)
	tk := task(events.ServiceBilling, eventstest.SubscriptionCreated("P9", "org_001", "sub_9", "cust_9"))

	st.FailOn("CreateWebhookLog", errors.New("connection reset"))
	r, ok := p.Process(ctx, tk).(Retry)
	require.True(t, ok)
	assert.Equal(t, time.Second, r.Delay)
	assert.ErrorContains(t, r.Err, "record failure")
	assert.Nil(t, st.WebhookLog("P9"))

	tk.Attempt = 40
	r, ok = p.Process(ctx, tk).(Retry)
	require.True(t, ok)
	assert.Equal(t, time.Second, r.Delay)

	st.FailOn("CreateWebhookLog", nil)
	tk.Attempt = 1
	assert.IsType(t, DeadLetter{}, p.Process(ctx, tk))
	l := st.WebhookLog("P9")
	require.NotNil(t, l)
	assert.Equal(t, models.WebhookFailed, l.Status)
	assert.Equal(t, 2, l.Attempts)
}

func TestAbandonWritesFailedRow(t *testing.T) {
	st := seeded()
	p := newProcessor(st, nil, 3)
	tk := task(events.ServiceMessaging, eventstest.MessageDelivered("M9", "org_001", "msg_9", "a@techcorp.com"))

	out := p.Abandon(context.Background(), tk, errors.New("schedule retry: redis down"))
	assert.IsType(t, DeadLetter{}, out)
	l := st.WebhookLog("M9")
	require.NotNil(t, l)
	assert.Equal(t, models.WebhookFailed, l.Status)
	assert.Equal(t, "org_001", l.OrgID)

	assert.IsType(t, Duplicate{}, p.Abandon(context.Background(), tk, errors.New("again")))
	assert.IsType(t, Discarded{}, p.Abandon(context.Background(), task("unknown", []byte(`{}`)), errors.New("x")))
}

func TestProcessConcurrentDuplicateRollsBack(t *testing.T) {
	ctx := context.Background()
	mem := seeded()
	require.NoError(t, mem.RecordFailure(ctx, &models.WebhookLog{
		EventID: "E4", Service: "user_service", OrgID: "org_001", Status: models.WebhookProcessed, Payload: []byte(`{}`), Attempts: 1,
	}))
	p := newProcessor(racingStore{mem}, nil, 3)

	out := p.Process(ctx, task(events.ServiceIdentity,
		eventstest.UserCreated("E4", "org_001", "ext_user_4", "d@techcorp.com")))
	assert.Equal(t, Duplicate{}, out)
	assert.Empty(t, mem.Users())
	assert.Empty(t, mem.AuditLogs())
	assert.Len(t, mem.WebhookLogs(), 1)
}

func TestProcessDiscardsUnprocessableTasks(t *testing.T) {
	st := seeded()
	p := newProcessor(st, nil, 3)
	ctx := context.Background()

	out := p.Process(ctx, queue.NewTask("fax_service", eventstest.UserCreated("E5", "org_001", "u", "e@x.com")))
	assert.IsType(t, Discarded{}, out)

	out = p.Process(ctx, task(events.ServiceIdentity, []byte(`{"event_id":"E6"`)))
	assert.IsType(t, Discarded{}, out)

	assert.Empty(t, st.WebhookLogs())
}
