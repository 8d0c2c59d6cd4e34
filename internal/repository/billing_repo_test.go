package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mika2333/daily_english_server/internal/model"
	"github.com/mika2333/daily_english_server/internal/testutil"
)

func TestBillingRepository_GetBySubscriptionID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewBillingRepository(db)
	user := testutil.TestUser(t, db)
	testutil.TestBillingState(t, db, user.ID, testutil.WithStripeIDs("cus_1", "sub_1"))

	state, err := repo.GetBySubscriptionID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, state.UserID)

	state, err = repo.GetByCustomerID("cus_1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, state.UserID)

	_, err = repo.GetBySubscriptionID("sub_unknown")
	assert.Error(t, err)
}

func TestBillingRepository_Save_TrialUsedMonotonic(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewBillingRepository(db)
	user := testutil.TestUser(t, db)
	state := testutil.TestBillingState(t, db, user.ID, testutil.WithTrialUsed())

	// An update that would reset trial_used must not do so
	state.TrialUsed = false
	state.Plan = model.PlanStandard
	require.NoError(t, repo.Save(state))

	found, err := repo.GetByUserID(user.ID)
	require.NoError(t, err)
	assert.True(t, found.TrialUsed)
	assert.Equal(t, model.PlanStandard, found.Plan)
}

func TestBillingRepository_ClaimTrial(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewBillingRepository(db)

	hash := "a3f1c2d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"

	claimed, err := repo.TrialClaimed(hash)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, repo.ClaimTrial(hash))
	// Claiming twice is not an error
	require.NoError(t, repo.ClaimTrial(hash))

	claimed, err = repo.TrialClaimed(hash)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestBillingRepository_UpsertEvent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewBillingRepository(db)

	err := repo.UpsertEvent(&model.WebhookEvent{
		EventID:   "evt_1",
		EventType: "customer.subscription.updated",
		Outcome:   model.OutcomeError,
		Detail:    "db timeout",
	})
	require.NoError(t, err)

	// Retry of the same event overwrites the outcome instead of appending
	err = repo.UpsertEvent(&model.WebhookEvent{
		EventID:   "evt_1",
		EventType: "customer.subscription.updated",
		Outcome:   model.OutcomeApplied,
	})
	require.NoError(t, err)

	event, err := repo.GetEvent("evt_1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, event.Outcome)

	events, total, err := repo.ListEvents(10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, events, 1)
}

func TestBillingRepository_ListEvents_Paged(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewBillingRepository(db)

	for _, id := range []string{"evt_a", "evt_b", "evt_c"} {
		require.NoError(t, repo.UpsertEvent(&model.WebhookEvent{
			EventID:   id,
			EventType: "invoice.paid",
			Outcome:   model.OutcomeSkipped,
		}))
	}

	events, total, err := repo.ListEvents(2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, events, 2)
	// Newest first
	assert.Equal(t, "evt_c", events[0].EventID)
}
