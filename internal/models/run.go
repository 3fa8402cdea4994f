package models

import "time"

// RankingRun records one call to the ranking engine.
type RankingRun struct {
	ID string `json:"id" gorm:"primaryKey"`

	// ProfileDigest is the content digest of the profile query text.
	// The text itself is never stored.
	ProfileDigest string `json:"profile_digest" gorm:"index"`

	JobCount int `json:"job_count"`
	TopK     int `json:"top_k"`

	// DurationMs is the wall-clock time of the ranking call.
	DurationMs int64 `json:"duration_ms"`

	CreatedAt time.Time `json:"created_at"`

	Results []RankedJob `json:"results" gorm:"foreignKey:RunID"`
}

// RankedJob is one MatchResult persisted under a ranking run.
type RankedJob struct {
	ID    uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	RunID string `json:"-" gorm:"index"`

	JobID      string  `json:"job_id"`
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
	SkillScore float64 `json:"skill_score"`
	Composite  float64 `json:"composite"`

	// Skill lists are stored comma-joined; they are presentation data.
	MatchedSkills string `json:"matched_skills"`
	MissingSkills string `json:"missing_skills"`
}
