package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/internal/webhooklogs"
	"github.com/aura-platform/integrations/pkg/database"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, 4, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, nil))
	return pool
}

func uniqueID(prefix string) string { return prefix + "_" + uuid.NewString() }

func TestPostgresDuplicateEventIsRejected(t *testing.T) {
	pool := testPool(t)
	s := NewPostgres(pool)
	ctx := context.Background()
	eventID := uniqueID("evt")

	insert := func() error {
		return s.WithinTx(ctx, func(tx Tx) error {
			return tx.CreateWebhookLog(ctx, &models.WebhookLog{
				EventID:  eventID,
				Service:  "identity",
				OrgID:    "org_test",
				Status:   models.WebhookProcessed,
				Payload:  json.RawMessage(`{}`),
				Attempts: 1,
			})
		})
	}
	require.NoError(t, insert())

	err := insert()
	assert.True(t, errors.Is(err, ErrDuplicateEvent))

	done, err := s.IsProcessed(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, done)

	n, err := webhooklogs.NewRepository(pool).CountByEventID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPostgresRollbackLeavesNoTrace(t *testing.T) {
	pool := testPool(t)
	s := NewPostgres(pool)
	ctx := context.Background()
	eventID := uniqueID("evt")
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx Tx) error {
		if err := tx.CreateWebhookLog(ctx, &models.WebhookLog{
			EventID: eventID, Service: "billing", OrgID: "org_test",
			Status: models.WebhookProcessed, Payload: json.RawMessage(`{}`), Attempts: 1,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	done, err := s.IsProcessed(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestPostgresEnsureOrganizationsIsIdempotent(t *testing.T) {
	pool := testPool(t)
	s := NewPostgres(pool)
	ctx := context.Background()
	slug := uniqueID("org")
	seeds := []string{slug + ":Test Org " + slug}

	require.NoError(t, s.EnsureOrganizations(ctx, seeds, nil))
	require.NoError(t, s.EnsureOrganizations(ctx, seeds, nil))

	err := s.WithinTx(ctx, func(tx Tx) error {
		org, err := tx.OrganizationBySlug(ctx, slug)
		require.NoError(t, err)
		require.NotNil(t, org)
		assert.Equal(t, "Test Org "+slug, org.Name)
		return nil
	})
	require.NoError(t, err)
}
