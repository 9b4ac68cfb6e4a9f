package draft

import (
	"math/rand"
	"sync"
	"time"

	"github.com/kestrelcg/draftroom/go/internal/models"
)

// PickConstraint narrows which offers an auto pick may take.
type PickConstraint struct {
	// ExcludeLegendary drops legendary offers when the side already holds
	// its allowed legendary.
	ExcludeLegendary bool
	// ForceLegendary restricts the choice to legendary offers on the side's
	// final grid slot when it holds none yet.
	ForceLegendary bool
}

// AutoPickStrategy chooses an offer for a side that ran out the clock.
type AutoPickStrategy interface {
	SelectOffer(candidates []models.Offer, constraint PickConstraint) (models.Offer, bool)
}

// RandomStrategy picks uniformly at random among the eligible offers.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy with its own seed.
func NewRandomStrategy() *RandomStrategy {
	src := rand.NewSource(time.Now().UnixNano())
	return &RandomStrategy{rng: rand.New(src)}
}

// NewSeededStrategy constructs a RandomStrategy over a fixed seed.
func NewSeededStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{rng: rand.New(rand.NewSource(seed))}
}

// SelectOffer implements AutoPickStrategy.SelectOffer
func (s *RandomStrategy) SelectOffer(candidates []models.Offer, constraint PickConstraint) (models.Offer, bool) {
	eligible := make([]models.Offer, 0, len(candidates))
	for _, o := range candidates {
		if constraint.ExcludeLegendary && o.IsLegendary {
			continue
		}
		if constraint.ForceLegendary && !o.IsLegendary {
			continue
		}
		eligible = append(eligible, o)
	}
	if len(eligible) == 0 && constraint.ForceLegendary {
		// No legendary left to force; fall back to the full eligible set.
		for _, o := range candidates {
			if constraint.ExcludeLegendary && o.IsLegendary {
				continue
			}
			eligible = append(eligible, o)
		}
	}
	if len(eligible) == 0 {
		return models.Offer{}, false
	}

	s.mu.Lock()
	idx := s.rng.Intn(len(eligible))
	s.mu.Unlock()
	return eligible[idx], true
}
