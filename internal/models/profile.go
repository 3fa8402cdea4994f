package models

import "strings"

// Profile is a candidate profile used as the ranking query.
// It is owned by the caller and never mutated by the engine.
type Profile struct {
	// Resume is the extracted resume text (extraction happens upstream).
	Resume string `json:"resume"`
	// Summary is an optional free-text summary of the candidate.
	Summary string `json:"summary"`
	// Skills is the candidate's skill list, free text as supplied.
	Skills []string `json:"skills"`
}

// QueryText concatenates the query-relevant fields into the text that
// gets embedded: resume body, then summary, then the raw skill list.
func (p Profile) QueryText() string {
	var parts []string

	if s := strings.TrimSpace(p.Resume); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(p.Summary); s != "" {
		parts = append(parts, s)
	}
	if skills := p.nonEmptySkills(); len(skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(skills, ", "))
	}

	return strings.Join(parts, " ")
}

// Empty reports whether the profile carries neither query text nor skills.
// An empty profile cannot be ranked against anything.
func (p Profile) Empty() bool {
	return strings.TrimSpace(p.Resume) == "" &&
		strings.TrimSpace(p.Summary) == "" &&
		len(p.nonEmptySkills()) == 0
}

func (p Profile) nonEmptySkills() []string {
	skills := make([]string, 0, len(p.Skills))
	for _, s := range p.Skills {
		if strings.TrimSpace(s) != "" {
			skills = append(skills, strings.TrimSpace(s))
		}
	}
	return skills
}
