// Package match scores skill overlap between a candidate profile and a
// job posting. The primary path compares skill embeddings; when the
// embedding API is unavailable it degrades to lexical containment, a
// decision kept internal so callers see one matcher.
package match

import (
	"context"
	"log"
	"strings"

	"github.com/asteroid-belt/matchbox/internal/embedding"
)

// Embedder is the slice of the embedding client the matcher needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds matcher tunables. Threshold and the substring fallback are
// inherited heuristics, not accuracy guarantees; both are characterized
// by tests rather than asserted as load-bearing.
type Config struct {
	// Threshold is the minimum cosine similarity for a semantic match.
	Threshold float64

	// MaxMissing caps reported missing skills. Presentation only; the
	// score is computed before capping.
	MaxMissing int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:  0.70,
		MaxMissing: 5,
	}
}

// Result is the outcome of scoring one job's skills against a profile.
type Result struct {
	// Score is |matched job skills| / |job skills| in 0..1. A job with
	// no skill requirements scores 1.0: nothing to miss.
	Score   float64
	Matched []string
	Missing []string
}

// Matcher computes skill-overlap scores.
type Matcher struct {
	embedder Embedder
	config   Config
}

// New creates a Matcher over the given embedder.
func New(embedder Embedder, cfg Config) *Matcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.MaxMissing <= 0 {
		cfg.MaxMissing = DefaultConfig().MaxMissing
	}
	return &Matcher{embedder: embedder, config: cfg}
}

// Score computes the 0..1 overlap between profile skills and job skills.
func (m *Matcher) Score(ctx context.Context, profileSkills, jobSkills []string) Result {
	profile := normalizeSkills(profileSkills)
	job := normalizeSkills(jobSkills)

	if len(job) == 0 {
		// No skill requirement cannot be a deficiency.
		return Result{Score: 1.0, Matched: []string{}, Missing: []string{}}
	}
	if len(profile) == 0 {
		return Result{Score: 0, Matched: []string{}, Missing: m.capMissing(job)}
	}

	matched := m.semanticMatch(ctx, profile, job)
	return m.buildResult(job, matched)
}

// semanticMatch embeds the whole skill set in one batched call and pairs
// job skills to profile skills by cosine similarity. Skills the API could
// not embed fall back to lexical containment; a wholly failed embedding
// call degrades the entire match to the lexical path.
func (m *Matcher) semanticMatch(ctx context.Context, profile, job []string) map[string]bool {
	texts := make([]string, 0, len(profile)+len(job))
	texts = append(texts, profile...)
	texts = append(texts, job...)

	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		log.Printf("skill embedding failed, using lexical matching: %v", err)
		return lexicalMatch(profile, job)
	}

	profileVecs := vectors[:len(profile)]
	jobVecs := vectors[len(profile):]

	matched := make(map[string]bool, len(job))
	used := make([]bool, len(profile))

	for j, jobSkill := range job {
		if embedding.Unavailable(jobVecs[j]) {
			// Rate-limited skill: lexical for this one only.
			if idx := lexicalBestMatch(profile, used, jobSkill); idx >= 0 {
				used[idx] = true
				matched[jobSkill] = true
			}
			continue
		}

		best := -1
		bestSim := 0.0
		for i := range profile {
			if used[i] || embedding.Unavailable(profileVecs[i]) {
				continue
			}
			if sim := embedding.CosineSimilarity(profileVecs[i], jobVecs[j]); sim > bestSim {
				bestSim = sim
				best = i
			}
		}
		if best >= 0 && bestSim >= m.config.Threshold {
			used[best] = true
			matched[jobSkill] = true
			continue
		}

		// Profile skills without embeddings still get a lexical shot.
		if idx := lexicalBestUnavailable(profile, profileVecs, used, jobSkill); idx >= 0 {
			used[idx] = true
			matched[jobSkill] = true
		}
	}

	return matched
}

// lexicalMatch is the degraded-mode pairing: a job skill matches when it
// contains, or is contained in, any profile skill (case-insensitive).
// Unlike the semantic path, profile skills are not consumed here: one
// profile skill may cover several job skills. Intentionally permissive
// ("Java" matches inside "JavaScript"); acceptable only as a fallback.
func lexicalMatch(profile, job []string) map[string]bool {
	matched := make(map[string]bool, len(job))

	for _, jobSkill := range job {
		for _, profileSkill := range profile {
			if strings.Contains(profileSkill, jobSkill) || strings.Contains(jobSkill, profileSkill) {
				matched[jobSkill] = true
				break
			}
		}
	}
	return matched
}

// lexicalBestMatch returns the first unused profile skill that contains,
// or is contained in, the job skill. -1 when none qualifies.
func lexicalBestMatch(profile []string, used []bool, jobSkill string) int {
	for i, profileSkill := range profile {
		if used[i] {
			continue
		}
		if strings.Contains(profileSkill, jobSkill) || strings.Contains(jobSkill, profileSkill) {
			return i
		}
	}
	return -1
}

// lexicalBestUnavailable is lexicalBestMatch restricted to profile skills
// whose embeddings were unavailable; available skills already had their
// semantic chance.
func lexicalBestUnavailable(profile []string, vecs [][]float32, used []bool, jobSkill string) int {
	for i, profileSkill := range profile {
		if used[i] || !embedding.Unavailable(vecs[i]) {
			continue
		}
		if strings.Contains(profileSkill, jobSkill) || strings.Contains(jobSkill, profileSkill) {
			return i
		}
	}
	return -1
}

func (m *Matcher) buildResult(job []string, matched map[string]bool) Result {
	matchedList := make([]string, 0, len(matched))
	missing := make([]string, 0, len(job))
	for _, skill := range job {
		if matched[skill] {
			matchedList = append(matchedList, skill)
		} else {
			missing = append(missing, skill)
		}
	}

	score := float64(len(matchedList)) / float64(len(job))
	if score > 1.0 {
		score = 1.0
	}

	return Result{
		Score:   score,
		Matched: matchedList,
		Missing: m.capMissing(missing),
	}
}

func (m *Matcher) capMissing(missing []string) []string {
	if len(missing) > m.config.MaxMissing {
		missing = missing[:m.config.MaxMissing]
	}
	return append([]string{}, missing...)
}

// normalizeSkills trims, case-folds, drops empties, and dedupes while
// preserving order.
func normalizeSkills(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
