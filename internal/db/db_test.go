package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asteroid-belt/matchbox/internal/models"
)

// testDB creates a temporary test database.
func testDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(DefaultConfig(dbPath))
	require.NoError(t, err, "create test db")

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})
	return db
}

func sampleResults() []models.MatchResult {
	return []models.MatchResult{
		{JobID: "job-a", Rank: 1, Similarity: 0.9, SkillScore: 1.0, Composite: 0.94, MatchedSkills: []string{"python", "docker"}},
		{JobID: "job-b", Rank: 2, Similarity: 0.2, SkillScore: 0.0, Composite: 0.12, MissingSkills: []string{"java"}},
	}
}

func TestNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "matchbox.db")

	db, err := New(DefaultConfig(dbPath))
	require.NoError(t, err)
	defer func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close database: %v", err)
		}
	}()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
	assert.Equal(t, dbPath, db.Path())
}

func TestSaveRunAndGetRun(t *testing.T) {
	db := testDB(t)

	run, err := db.SaveRun("abc123", 2, 5, 1500*time.Millisecond, sampleResults())
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, int64(1500), run.DurationMs)

	got, err := db.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.ProfileDigest)
	assert.Equal(t, 2, got.JobCount)
	assert.Equal(t, 5, got.TopK)
	require.Len(t, got.Results, 2)

	// Results load in rank order with the skill lists round-tripped.
	assert.Equal(t, "job-a", got.Results[0].JobID)
	assert.Equal(t, 1, got.Results[0].Rank)
	assert.Equal(t, "python,docker", got.Results[0].MatchedSkills)
	assert.Equal(t, "java", got.Results[1].MissingSkills)
}

func TestSaveRun_IDsAreShortDigestsAndUnique(t *testing.T) {
	db := testDB(t)

	first, err := db.SaveRun("same-digest", 1, 1, time.Second, nil)
	require.NoError(t, err)
	second, err := db.SaveRun("same-digest", 1, 1, time.Second, nil)
	require.NoError(t, err)

	assert.Len(t, first.ID, 16)
	assert.NotEqual(t, first.ID, second.ID, "same profile digest must still yield distinct run IDs")
}

func TestGetRun_NotFound(t *testing.T) {
	db := testDB(t)

	_, err := db.GetRun("no-such-run")
	assert.Error(t, err)
}

func TestRecentRuns(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 3; i++ {
		_, err := db.SaveRun("digest", 1, 1, time.Second, nil)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond) // distinct created_at ordering
	}

	runs, err := db.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, !runs[0].CreatedAt.Before(runs[1].CreatedAt), "newest first")

	// Non-positive limit falls back to a default instead of returning nothing.
	runs, err = db.RecentRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestDeleteRun(t *testing.T) {
	db := testDB(t)

	run, err := db.SaveRun("digest", 2, 2, time.Second, sampleResults())
	require.NoError(t, err)

	require.NoError(t, db.DeleteRun(run.ID))

	_, err = db.GetRun(run.ID)
	assert.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.RankedJob{}).Where("run_id = ?", run.ID).Count(&count).Error)
	assert.Zero(t, count, "orphaned results should be deleted")
}
