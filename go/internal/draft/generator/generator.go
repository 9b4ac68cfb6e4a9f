package generator

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/kestrelcg/draftroom/go/internal/models"
)

const (
	// TotalRounds is the round count for sequential and alternating drafts.
	TotalRounds = 13

	// GridBoardSize is the number of cards on a grid draft board.
	GridBoardSize = 36

	minCost = 1
	maxCost = 12
)

// Offer is one generated card slot, before persistence.
type Offer struct {
	Round int
	Side  models.Side
	Card  models.Card
}

// ExhaustedError reports that a round or category could not be filled from
// the remaining card pool. The schedule is never returned partially filled.
type ExhaustedError struct {
	Mode     models.RoomMode
	Round    int
	Category string
	Need     int
	Have     int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s generation exhausted at round %d: category %s needs %d cards, %d available",
		e.Mode, e.Round, e.Category, e.Need, e.Have)
}

// Generate produces the complete offer schedule for one session. The rng is
// injected so tests can seed it.
func Generate(mode models.RoomMode, cards []models.Card, rng *rand.Rand) ([]Offer, error) {
	p := newPool(cards)
	switch mode {
	case models.RoomModeSequential:
		return generateSequential(p, rng)
	case models.RoomModeAlternating:
		return generateAlternating(p, rng)
	case models.RoomModeGrid:
		return generateGrid(p, rng)
	default:
		return nil, fmt.Errorf("unknown draft mode %q", mode)
	}
}

// pool tracks which catalog cards remain available during generation.
type pool struct {
	cards []models.Card
	used  []bool
}

func newPool(cards []models.Card) *pool {
	return &pool{cards: cards, used: make([]bool, len(cards))}
}

type cardFilter func(models.Card) bool

func nonLegendary(c models.Card) bool { return !c.IsLegendary }
func legendary(c models.Card) bool    { return c.IsLegendary }
func spell(c models.Card) bool        { return c.IsSpell && !c.IsLegendary }

func costIs(cost int) cardFilter {
	return func(c models.Card) bool { return !c.IsLegendary && c.Cost == cost }
}

func costBand(lo, hi int) cardFilter {
	return func(c models.Card) bool { return !c.IsLegendary && c.Cost >= lo && c.Cost <= hi }
}

// remaining counts unused cards matching the filter.
func (p *pool) remaining(f cardFilter) int {
	n := 0
	for i, c := range p.cards {
		if !p.used[i] && f(c) {
			n++
		}
	}
	return n
}

// total counts all cards matching the filter, used or not.
func (p *pool) total(f cardFilter) int {
	n := 0
	for _, c := range p.cards {
		if f(c) {
			n++
		}
	}
	return n
}

// draw removes and returns one unused card matching the filter, chosen
// uniformly at random.
func (p *pool) draw(rng *rand.Rand, f cardFilter) (models.Card, bool) {
	var candidates []int
	for i, c := range p.cards {
		if !p.used[i] && f(c) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return models.Card{}, false
	}
	idx := candidates[rng.Intn(len(candidates))]
	p.used[idx] = true
	return p.cards[idx], true
}

// generateSequential builds 13 rounds of one card per side. Rounds 1 through
// 12 target the cost bucket equal to the round number; round 13 draws from
// whatever non-legendary cards remain.
func generateSequential(p *pool, rng *rand.Rand) ([]Offer, error) {
	sides := []models.Side{models.SideCreator, models.SideJoiner}
	offers := make([]Offer, 0, TotalRounds*len(sides))

	for round := 1; round < TotalRounds; round++ {
		// A catalog that never had cards at this cost cannot support the
		// round at all; neighbor fallback only covers drained buckets.
		if p.total(costIs(round)) == 0 {
			return nil, &ExhaustedError{
				Mode:     models.RoomModeSequential,
				Round:    round,
				Category: fmt.Sprintf("cost-%d", round),
				Need:     len(sides),
				Have:     0,
			}
		}
		for _, side := range sides {
			card, ok := p.drawNearCost(rng, round)
			if !ok {
				return nil, &ExhaustedError{
					Mode:     models.RoomModeSequential,
					Round:    round,
					Category: fmt.Sprintf("cost-%d", round),
					Need:     len(sides),
					Have:     p.remaining(costBand(minCost, maxCost)),
				}
			}
			offers = append(offers, Offer{Round: round, Side: side, Card: card})
		}
	}

	for _, side := range sides {
		card, ok := p.draw(rng, nonLegendary)
		if !ok {
			return nil, &ExhaustedError{
				Mode:     models.RoomModeSequential,
				Round:    TotalRounds,
				Category: "any",
				Need:     len(sides),
				Have:     p.remaining(nonLegendary),
			}
		}
		offers = append(offers, Offer{Round: TotalRounds, Side: side, Card: card})
	}
	return offers, nil
}

// drawNearCost draws from the target cost bucket, widening symmetrically
// (cost-1, cost+1, cost-2, cost+2, ...) when a bucket is drained.
func (p *pool) drawNearCost(rng *rand.Rand, cost int) (models.Card, bool) {
	if card, ok := p.draw(rng, costIs(cost)); ok {
		return card, true
	}
	for delta := 1; delta < maxCost; delta++ {
		if lo := cost - delta; lo >= minCost {
			if card, ok := p.draw(rng, costIs(lo)); ok {
				return card, true
			}
		}
		if hi := cost + delta; hi <= maxCost {
			if card, ok := p.draw(rng, costIs(hi)); ok {
				return card, true
			}
		}
	}
	return models.Card{}, false
}

const alternatingOfferCount = 3

type roundTarget struct {
	category string
	filter   cardFilter
}

// generateAlternating builds 13 shared rounds of 3 cards each from a fixed
// category plan presented in shuffled order. No card repeats across the
// session.
func generateAlternating(p *pool, rng *rand.Rand) ([]Offer, error) {
	targets := []roundTarget{
		{"cost-1", costIs(1)},
		{"cost-2", costIs(2)},
		{"cost-3", costIs(3)},
		{"cost-4", costIs(4)},
		{"cost-5", costIs(5)},
		{"legendary", legendary},
		{"low-band", costBand(1, 3)},
		{"low-band", costBand(1, 3)},
		{"low-band", costBand(1, 3)},
		{"mid-band", costBand(4, 6)},
		{"mid-band", costBand(4, 6)},
		{"high-band", costBand(7, 10)},
		{"spell", spell},
	}

	// Draw in plan order so a band round can never starve a single-cost
	// round of its guaranteed cards; only the round numbering is shuffled.
	rounds := rng.Perm(len(targets))

	offers := make([]Offer, 0, TotalRounds*alternatingOfferCount)
	for i, target := range targets {
		round := rounds[i] + 1
		if have := p.remaining(target.filter); have < alternatingOfferCount {
			return nil, &ExhaustedError{
				Mode:     models.RoomModeAlternating,
				Round:    round,
				Category: target.category,
				Need:     alternatingOfferCount,
				Have:     have,
			}
		}
		for n := 0; n < alternatingOfferCount; n++ {
			card, _ := p.draw(rng, target.filter)
			offers = append(offers, Offer{Round: round, Side: models.SideShared, Card: card})
		}
	}
	return offers, nil
}

// generateGrid builds the single 36 card shared board.
func generateGrid(p *pool, rng *rand.Rand) ([]Offer, error) {
	var picked []models.Card

	take := func(category string, filter cardFilter, need int) error {
		if have := p.remaining(filter); have < need {
			return &ExhaustedError{
				Mode:     models.RoomModeGrid,
				Round:    1,
				Category: category,
				Need:     need,
				Have:     have,
			}
		}
		for n := 0; n < need; n++ {
			card, _ := p.draw(rng, filter)
			picked = append(picked, card)
		}
		return nil
	}

	for cost := 1; cost <= 6; cost++ {
		if err := take(fmt.Sprintf("cost-%d", cost), costIs(cost), 2); err != nil {
			return nil, err
		}
	}
	if err := take("high-band", costBand(7, 10), 2); err != nil {
		return nil, err
	}
	if err := take("legendary", legendary, 3); err != nil {
		return nil, err
	}
	if err := take("spell", spell, 2); err != nil {
		return nil, err
	}
	if err := take("filler", nonLegendary, GridBoardSize-len(picked)); err != nil {
		return nil, err
	}

	// Non-legendary cards sort by cost then name; legendaries go last.
	sort.Slice(picked, func(i, j int) bool {
		a, b := picked[i], picked[j]
		if a.IsLegendary != b.IsLegendary {
			return !a.IsLegendary
		}
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return a.Name < b.Name
	})

	offers := make([]Offer, len(picked))
	for i, card := range picked {
		offers[i] = Offer{Round: 1, Side: models.SideShared, Card: card}
	}
	return offers, nil
}
