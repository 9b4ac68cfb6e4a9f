package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomMode defines the draft mode of a room.
type RoomMode string

const (
	RoomModeSequential  RoomMode = "SEQUENTIAL"
	RoomModeAlternating RoomMode = "ALTERNATING"
	RoomModeGrid        RoomMode = "GRID"
)

// RoomStatus defines the lifecycle status of a room.
// Transitions are monotonic: WAITING -> DRAFTING -> COMPLETED.
type RoomStatus string

const (
	RoomStatusWaiting   RoomStatus = "WAITING"
	RoomStatusDrafting  RoomStatus = "DRAFTING"
	RoomStatusCompleted RoomStatus = "COMPLETED"
)

// RoundPhase is the sub-state of a room while drafting.
type RoundPhase string

const (
	RoundPhaseAccepting RoundPhase = "ACCEPTING"
	RoundPhaseRevealing RoundPhase = "REVEALING"
)

// Side identifies which participant an offer or deck entry belongs to.
// SideShared marks offers drawn from a shared pool.
type Side string

const (
	SideCreator Side = "CREATOR"
	SideJoiner  Side = "JOINER"
	SideShared  Side = "SHARED"
)

// Other returns the opposing participant side.
func (s Side) Other() Side {
	if s == SideCreator {
		return SideJoiner
	}
	return SideCreator
}

// Role is the resolved identity of a caller within a room.
type Role string

const (
	RoleCreator   Role = "CREATOR"
	RoleJoiner    Role = "JOINER"
	RoleSpectator Role = "SPECTATOR"
)

// Side maps a participant role to its side. Spectators have no side.
func (r Role) Side() (Side, bool) {
	switch r {
	case RoleCreator:
		return SideCreator, true
	case RoleJoiner:
		return SideJoiner, true
	default:
		return "", false
	}
}

// RoomSettings holds optional per-room overrides stored as JSONB.
type RoomSettings struct {
	RoundDurationSec int `json:"round_duration_sec,omitempty"`
}

// Room is one draft session between two participants.
type Room struct {
	ID               uuid.UUID     `json:"id"`
	Code             string        `json:"code"`
	Mode             RoomMode      `json:"mode"`
	Status           RoomStatus    `json:"status"`
	Phase            RoundPhase    `json:"phase"`
	CreatorName      string        `json:"creator_name"`
	JoinerName       *string       `json:"joiner_name,omitempty"`
	CreatorReady     bool          `json:"creator_ready"`
	JoinerReady      bool          `json:"joiner_ready"`
	CreatorToken     uuid.UUID     `json:"-"`
	JoinerToken      *uuid.UUID    `json:"-"`
	FirstPicker      Side          `json:"first_picker"`
	Round            int           `json:"round"`
	Turn             int           `json:"turn"`
	RoundStartedAt   *time.Time    `json:"round_started_at,omitempty"`
	RoundDurationSec int           `json:"round_duration_sec"`
	NextDeadline     *time.Time    `json:"next_deadline,omitempty"`
	Settings         *RoomSettings `json:"settings,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
