package draft

import (
	"github.com/kestrelcg/draftroom/go/internal/models"
)

const (
	// TotalRounds applies to sequential and alternating drafts.
	TotalRounds = 13

	// GridTotalTurns is the cross-participant pick count that completes a
	// grid draft: the first picker banks 12 cards, the joiner 11.
	GridTotalTurns = 23

	// GridLegendaryCap limits how many legendary cards a side may bank in
	// grid mode.
	GridLegendaryCap = 1
)

// Timing holds the per-mode round windows, loaded from the yaml config.
type Timing struct {
	SequentialRoundSec  int `yaml:"sequential_round_sec"`
	AlternatingRoundSec int `yaml:"alternating_round_sec"`
	GridTurnSec         int `yaml:"grid_turn_sec"`
	RevealDelaySec      int `yaml:"reveal_delay_sec"`
}

// DefaultTiming returns the standard draft timing policy.
func DefaultTiming() Timing {
	return Timing{
		SequentialRoundSec:  15,
		AlternatingRoundSec: 8,
		GridTurnSec:         10,
		RevealDelaySec:      2,
	}
}

// RoundDurationSec returns the pick window for the given mode. A room level
// override only applies to sequential drafts.
func (t Timing) RoundDurationSec(mode models.RoomMode, override int) int {
	switch mode {
	case models.RoomModeAlternating:
		return t.AlternatingRoundSec
	case models.RoomModeGrid:
		return t.GridTurnSec
	default:
		if override > 0 {
			return override
		}
		return t.SequentialRoundSec
	}
}

// requiredSides returns the sides that must have a pick before the current
// round or turn can resolve.
func requiredSides(room *models.Room) []models.Side {
	switch room.Mode {
	case models.RoomModeSequential:
		return []models.Side{models.SideCreator, models.SideJoiner}
	case models.RoomModeAlternating:
		return []models.Side{models.SideCreator, models.SideJoiner}
	case models.RoomModeGrid:
		return []models.Side{gridTurnOwner(room)}
	}
	return nil
}

// turnOwner returns which side may pick right now in turn-owned modes, given
// which sides have already picked this round. Sequential mode has no turn
// ownership; both sides pick freely.
func turnOwner(room *models.Room, picked map[models.Side]bool) (models.Side, bool) {
	switch room.Mode {
	case models.RoomModeAlternating:
		first := alternatingFirstPicker(room)
		if !picked[first] {
			return first, true
		}
		if !picked[first.Other()] {
			return first.Other(), true
		}
		return "", false
	case models.RoomModeGrid:
		owner := gridTurnOwner(room)
		if picked[owner] {
			return "", false
		}
		return owner, true
	default:
		return "", false
	}
}

// alternatingFirstPicker alternates the opening side each round starting
// from the room's first picker.
func alternatingFirstPicker(room *models.Room) models.Side {
	if room.Round%2 == 1 {
		return room.FirstPicker
	}
	return room.FirstPicker.Other()
}

// gridTurnOwner maps the 1-based grid turn counter to a side. Turns simply
// alternate starting from the room's first picker, so the first picker takes
// the odd turns and ends with 12 cards against the joiner's 11.
func gridTurnOwner(room *models.Room) models.Side {
	if room.Turn%2 == 1 {
		return room.FirstPicker
	}
	return room.FirstPicker.Other()
}

// isFinalRound reports whether the current round or turn is the last one.
func isFinalRound(room *models.Room) bool {
	if room.Mode == models.RoomModeGrid {
		return room.Turn >= GridTotalTurns
	}
	return room.Round >= TotalRounds
}

// deckSeq is the sequence slot a banked card occupies for the current round
// or turn: the round number for round-based modes, the turn counter for grid.
func deckSeq(room *models.Room) int {
	if room.Mode == models.RoomModeGrid {
		return room.Turn
	}
	return room.Round
}

// sideTurnsRemaining counts how many grid turns the side still has, including
// the current one when it owns it.
func sideTurnsRemaining(room *models.Room, side models.Side) int {
	n := 0
	for turn := room.Turn; turn <= GridTotalTurns; turn++ {
		owner := room.FirstPicker
		if turn%2 == 0 {
			owner = room.FirstPicker.Other()
		}
		if owner == side {
			n++
		}
	}
	return n
}
