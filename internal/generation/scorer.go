package generation

import (
	"math/rand/v2"
	"sync"

	"github.com/proflinker/api/internal/models"
)

// Score band of the placeholder scorer
const (
	MinMatchScore = 70
	MaxMatchScore = 100
)

var (
	universityComponents = []string{"research_alignment", "program_strength", "funding_fit"}
	professorComponents  = []string{"research_match", "publication_impact", "mentorship_fit"}
)

// Scorer attaches a match score to a normalized candidate. The interface is
// the stable seam for a real matching algorithm.
type Scorer interface {
	Score(kind models.CandidateKind, field string) models.Match
}

// RandomScorer draws uniform scores in [MinMatchScore, MaxMatchScore].
// Breakdown components are drawn independently of the total.
type RandomScorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomScorer creates a scorer. A nil source uses a randomly seeded PCG.
func NewRandomScorer(src rand.Source) *RandomScorer {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &RandomScorer{rng: rand.New(src)}
}

func (s *RandomScorer) Score(kind models.CandidateKind, _ string) models.Match {
	names := universityComponents
	if kind == models.KindProfessors {
		names = professorComponents
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	match := models.Match{
		Score:     s.draw(),
		Breakdown: make([]models.ScoreComponent, len(names)),
	}
	for i, name := range names {
		match.Breakdown[i] = models.ScoreComponent{Name: name, Score: s.draw()}
	}
	return match
}

func (s *RandomScorer) draw() int {
	return MinMatchScore + s.rng.IntN(MaxMatchScore-MinMatchScore+1)
}
