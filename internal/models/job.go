package models

import (
	"fmt"
	"strings"
)

// MaxSkillsInDocument caps how many skills are folded into a job's
// embedding text. Long skill tails add tokens without adding signal.
const MaxSkillsInDocument = 5

// JobPosting is a job as supplied by the acquisition layer.
// Treated as read-only input; ownership stays with the caller.
type JobPosting struct {
	// ID is an opaque identifier, unique within one ranking request.
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
}

// DocumentText builds the text embedded for this job:
// "<title> at <company>. <description> Skills: a, b, c".
func (j JobPosting) DocumentText() string {
	skills := j.Skills
	if len(skills) > MaxSkillsInDocument {
		skills = skills[:MaxSkillsInDocument]
	}

	text := fmt.Sprintf("%s at %s. %s", j.Title, j.Company, j.Description)
	if len(skills) > 0 {
		text += " Skills: " + strings.Join(skills, ", ")
	}
	return text
}
