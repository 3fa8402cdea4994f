package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/asteroid-belt/matchbox/internal/hash"
	"github.com/asteroid-belt/matchbox/internal/models"
)

// SaveRun persists a completed ranking run with its per-job results.
// The profile digest is stored instead of the profile text. The run ID is
// a truncated digest of the profile digest and the creation instant.
func (db *DB) SaveRun(profileDigest string, jobCount, topK int, duration time.Duration, results []models.MatchResult) (*models.RankingRun, error) {
	run := &models.RankingRun{
		ID:            hash.TruncatedSHA256(fmt.Sprintf("%s:%d", profileDigest, time.Now().UnixNano())),
		ProfileDigest: profileDigest,
		JobCount:      jobCount,
		TopK:          topK,
		DurationMs:    duration.Milliseconds(),
		CreatedAt:     time.Now(),
	}

	for _, r := range results {
		run.Results = append(run.Results, models.RankedJob{
			RunID:         run.ID,
			JobID:         r.JobID,
			Rank:          r.Rank,
			Similarity:    r.Similarity,
			SkillScore:    r.SkillScore,
			Composite:     r.Composite,
			MatchedSkills: strings.Join(r.MatchedSkills, ","),
			MissingSkills: strings.Join(r.MissingSkills, ","),
		})
	}

	err := db.Transaction(func(tx *DB) error {
		return tx.Create(run).Error
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun loads one run with its results.
func (db *DB) GetRun(id string) (*models.RankingRun, error) {
	var run models.RankingRun
	err := db.Preload("Results", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("rank ASC")
	}).First(&run, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RecentRuns returns the newest runs, most recent first, without results.
func (db *DB) RecentRuns(limit int) ([]models.RankingRun, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []models.RankingRun
	err := db.Order("created_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// DeleteRun removes a run and its results.
func (db *DB) DeleteRun(id string) error {
	return db.Transaction(func(tx *DB) error {
		if err := tx.Delete(&models.RankedJob{}, "run_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.RankingRun{}, "id = ?", id).Error
	})
}
