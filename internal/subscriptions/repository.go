package subscriptions

import (
	"context"

	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/pkg/database"
)

// Repository persists subscriptions synced from the billing service.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a subscriptions repository over a pool or a transaction.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// GetByExternalID returns the subscription with this billing id, or nil.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	const q = `SELECT id, external_subscription_id, user_id, customer_id, plan, status, billing_cycle,
			amount::float8, currency, trial_end, created_at, updated_at
		FROM subscriptions WHERE external_subscription_id = $1`
	var s models.Subscription
	var plan, status string
	var cycle *string
	err := r.db.QueryRow(ctx, q, externalID).Scan(&s.ID, &s.ExternalSubscriptionID, &s.UserID, &s.CustomerID,
		&plan, &status, &cycle, &s.Amount, &s.Currency, &s.TrialEnd, &s.CreatedAt, &s.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Plan = models.Plan(plan)
	s.Status = models.SubscriptionStatus(status)
	if cycle != nil {
		c := models.BillingCycle(*cycle)
		s.BillingCycle = &c
	}
	return &s, nil
}

// Create inserts s and fills its id and timestamps.
func (r *Repository) Create(ctx context.Context, s *models.Subscription) error {
	const q = `INSERT INTO subscriptions
			(external_subscription_id, user_id, customer_id, plan, status, billing_cycle, amount, currency, trial_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, q, s.ExternalSubscriptionID, s.UserID, s.CustomerID, string(s.Plan),
		string(s.Status), cycleParam(s.BillingCycle), s.Amount, s.Currency, s.TrialEnd).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// Update writes s's mutable fields.
func (r *Repository) Update(ctx context.Context, s *models.Subscription) error {
	const q = `UPDATE subscriptions
		SET customer_id = $2, plan = $3, status = $4, billing_cycle = $5, amount = $6, currency = $7,
		    trial_end = $8, updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING updated_at`
	return r.db.QueryRow(ctx, q, s.ID, s.CustomerID, string(s.Plan), string(s.Status),
		cycleParam(s.BillingCycle), s.Amount, s.Currency, s.TrialEnd).Scan(&s.UpdatedAt)
}

func cycleParam(c *models.BillingCycle) *string {
	if c == nil {
		return nil
	}
	v := string(*c)
	return &v
}
