package models

// MatchResult is one job's score against a profile. Created fresh per
// ranking run and never mutated afterward.
type MatchResult struct {
	JobID string `json:"job_id"`

	// Rank is the 1-based position after sorting.
	Rank int `json:"rank"`

	// Similarity is the cosine similarity between the profile and job
	// embeddings, clamped to 0..1. Zero when either embedding was
	// unavailable.
	Similarity float64 `json:"similarity"`

	// SkillScore is the 0..1 skill-overlap score.
	SkillScore float64 `json:"skill_score"`

	// Composite is the weighted combination of Similarity and SkillScore.
	Composite float64 `json:"composite"`

	// MatchedSkills are the job skills the profile covers.
	MatchedSkills []string `json:"matched_skills"`

	// MissingSkills are uncovered job skills, capped for presentation.
	MissingSkills []string `json:"missing_skills"`
}
