package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mika2333/daily_english_server/internal/model"
	"github.com/mika2333/daily_english_server/internal/testutil"
)

func TestDeliveryRepository_Reserve(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDeliveryRepository(db)
	user := testutil.TestUser(t, db)

	record := &model.DeliveryRecord{UserID: user.ID, DateKey: "2026-08-31", Topic: "travel"}
	created, err := repo.Reserve(record)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, record.ID)
	assert.Equal(t, model.DeliveryStatusReserved, record.Status)
}

func TestDeliveryRepository_Reserve_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDeliveryRepository(db)
	user := testutil.TestUser(t, db)

	first := &model.DeliveryRecord{UserID: user.ID, DateKey: "2026-08-31"}
	created, err := repo.Reserve(first)
	require.NoError(t, err)
	require.True(t, created)

	// Second reservation for the same logical day must be rejected
	second := &model.DeliveryRecord{UserID: user.ID, DateKey: "2026-08-31"}
	created, err = repo.Reserve(second)
	require.NoError(t, err)
	assert.False(t, created)

	// A different day is fine
	third := &model.DeliveryRecord{UserID: user.ID, DateKey: "2026-09-01"}
	created, err = repo.Reserve(third)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestDeliveryRepository_MarkSent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDeliveryRepository(db)
	user := testutil.TestUser(t, db)

	record := &model.DeliveryRecord{UserID: user.ID, DateKey: "2026-08-31"}
	created, err := repo.Reserve(record)
	require.NoError(t, err)
	require.True(t, created)

	sentAt := time.Now()
	err = repo.MarkSent(record.ID, "msg-123", `{"english_text":"hello"}`, "https://cdn.example.com/a.json", sentAt)
	require.NoError(t, err)

	found, err := repo.GetByID(record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusSent, found.Status)
	assert.Equal(t, "msg-123", found.MessageID)
	assert.NotNil(t, found.SentAt)
}

func TestDeliveryRepository_HasTrial(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDeliveryRepository(db)
	user := testutil.TestUser(t, db)

	has, err := repo.HasTrial(user.ID)
	require.NoError(t, err)
	assert.False(t, has)

	testutil.TestDelivery(t, db, user.ID, "2026-08-30", testutil.WithTrial())

	has, err = repo.HasTrial(user.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestDeliveryRepository_DeleteStaleReserved(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewDeliveryRepository(db)
	user := testutil.TestUser(t, db)

	testutil.TestDelivery(t, db, user.ID, "2026-08-28", testutil.WithReserved())
	testutil.TestDelivery(t, db, user.ID, "2026-08-29")
	today := testutil.TestDelivery(t, db, user.ID, "2026-08-31", testutil.WithReserved())

	cleaned, err := repo.DeleteStaleReserved("2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleaned)

	// Today's reservation and sent records survive
	_, err = repo.GetByID(today.ID)
	assert.NoError(t, err)
	sent, err := repo.GetByUserAndDate(user.ID, "2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusSent, sent.Status)
}
