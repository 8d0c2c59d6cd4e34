package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mika2333/daily_english_server/internal/testutil"
)

func TestTopicRepository_PickByRand(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTopicRepository(db)
	testutil.TestTopic(t, db, "travel", 0.2)
	testutil.TestTopic(t, db, "science", 0.5)
	testutil.TestTopic(t, db, "culture", 0.9)

	topic, err := repo.PickByRand(0.3)
	require.NoError(t, err)
	assert.Equal(t, "science", topic.Name)

	topic, err = repo.PickByRand(0.5)
	require.NoError(t, err)
	assert.Equal(t, "science", topic.Name)
}

func TestTopicRepository_PickByRand_WrapsAround(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTopicRepository(db)
	testutil.TestTopic(t, db, "travel", 0.2)
	testutil.TestTopic(t, db, "science", 0.5)

	// Draw beyond the largest rand wraps to the smallest
	topic, err := repo.PickByRand(0.95)
	require.NoError(t, err)
	assert.Equal(t, "travel", topic.Name)
}

func TestTopicRepository_PickByRand_SkipsInactive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTopicRepository(db)
	inactive := testutil.TestTopic(t, db, "retired", 0.3)
	require.NoError(t, db.Model(inactive).Update("active", false).Error)
	testutil.TestTopic(t, db, "science", 0.5)

	topic, err := repo.PickByRand(0.1)
	require.NoError(t, err)
	assert.Equal(t, "science", topic.Name)
}

func TestTopicRepository_PickByRand_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTopicRepository(db)

	_, err := repo.PickByRand(0.5)
	assert.Error(t, err)
}

func TestTopicRepository_ListActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTopicRepository(db)
	testutil.TestTopic(t, db, "culture", 0.9)
	testutil.TestTopic(t, db, "travel", 0.2)

	topics, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, topics, 2)
	// Ordered by rand
	assert.Equal(t, "travel", topics[0].Name)
	assert.Equal(t, "culture", topics[1].Name)
}
