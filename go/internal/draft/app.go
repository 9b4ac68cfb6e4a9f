package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kestrelcg/draftroom/go/internal/draft/events"
	"github.com/kestrelcg/draftroom/go/internal/draft/generator"
	"github.com/kestrelcg/draftroom/go/internal/models"
	"github.com/kestrelcg/draftroom/go/internal/rooms"
)

// DraftRepository defines what the app layer needs from the draft repository
type DraftRepository interface {
	BeginDraft(ctx context.Context, req BeginDraftRequest) (bool, error)
	ApplyPick(ctx context.Context, req ApplyPickRequest) error
	ApplyAutoPick(ctx context.Context, req ApplyPickRequest) (bool, error)
	MarkRevealing(ctx context.Context, roomID uuid.UUID, round, turn int, revealUntil time.Time, outbox []OutboxInsert) (bool, error)
	Advance(ctx context.Context, req AdvanceRequest) (bool, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	OffersForRound(ctx context.Context, roomID uuid.UUID, round int) ([]models.Offer, error)
	DeckEntries(ctx context.Context, roomID uuid.UUID) ([]models.DeckEntry, error)
	CountLegendaries(ctx context.Context, roomID uuid.UUID, side models.Side) (int, error)
	FetchNextDeadline(ctx context.Context) (*time.Time, error)
	FetchRoomsDue(ctx context.Context, limit int32) ([]uuid.UUID, error)
}

// RoomApp defines what the app layer needs from the rooms app
type RoomApp interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	SetReady(ctx context.Context, id uuid.UUID, side models.Side, ready bool) (*models.Room, error)
}

// CardSource defines what the app layer needs from the catalog
type CardSource interface {
	AllCards(ctx context.Context) ([]models.Card, error)
}

// Waker nudges the deadline orchestrator after a transition schedules a
// sooner deadline.
type Waker interface {
	Wake()
}

// App drives the draft state machine. All transitions are guarded writes,
// so concurrent or duplicate invocations collapse to a single effect.
type App struct {
	repo     DraftRepository
	rooms    RoomApp
	cards    CardSource
	strategy AutoPickStrategy
	timing   Timing
	clock    clockwork.Clock
	waker    Waker
}

func NewApp(repo DraftRepository, roomApp RoomApp, cards CardSource, strategy AutoPickStrategy, timing Timing, clock clockwork.Clock) *App {
	return &App{
		repo:     repo,
		rooms:    roomApp,
		cards:    cards,
		strategy: strategy,
		timing:   timing,
		clock:    clock,
	}
}

// SetWaker wires the orchestrator nudge. Optional; without it transitions
// still happen on the orchestrator's next poll.
func (a *App) SetWaker(w Waker) {
	a.waker = w
}

func (a *App) wake() {
	if a.waker != nil {
		a.waker.Wake()
	}
}

// SubmitReady flips the caller's ready flag and starts the draft once both
// sides are ready.
func (a *App) SubmitReady(ctx context.Context, code string, token uuid.UUID, ready bool) (*models.Room, error) {
	room, err := a.rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	role := rooms.ResolveRole(room, &token)
	side, ok := role.Side()
	if !ok {
		return nil, rejected(RejectSpectator, "only seated players can ready up")
	}

	room, err = a.rooms.SetReady(ctx, room.ID, side, ready)
	if err != nil {
		return nil, err
	}

	if room.CreatorReady && room.JoinerReady && room.JoinerName != nil {
		return a.StartDraft(ctx, room.Code)
	}
	return room, nil
}

// StartDraft generates the full offer schedule and moves the room into
// DRAFTING. Safe under concurrent invocation; the losing caller observes the
// started room. Generation exhaustion aborts with no state change.
func (a *App) StartDraft(ctx context.Context, code string) (*models.Room, error) {
	room, err := a.rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	switch room.Status {
	case models.RoomStatusDrafting:
		return room, nil
	case models.RoomStatusCompleted:
		return nil, fmt.Errorf("room %s has already completed", code)
	}
	if room.JoinerName == nil {
		return nil, fmt.Errorf("room %s has no joiner yet", code)
	}
	if !room.CreatorReady || !room.JoinerReady {
		return nil, fmt.Errorf("room %s is not fully ready", code)
	}

	cards, err := a.cards.AllCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	rng := rand.New(rand.NewSource(a.clock.Now().UnixNano()))
	offers, err := generator.Generate(room.Mode, cards, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to generate offers: %w", err)
	}

	durationSec := a.timing.RoundDurationSec(room.Mode, room.RoundDurationSec)
	startedAt := a.clock.Now().UTC()
	deadline := startedAt.Add(time.Duration(durationSec) * time.Second)

	started := *room
	started.Round, started.Turn = 1, 1

	outbox := []OutboxInsert{
		outboxEvent(events.TypeDraftStarted, events.DraftStartedPayload{
			RoomID:      room.ID.String(),
			Code:        room.Code,
			Mode:        string(room.Mode),
			StartedAt:   startedAt,
			TotalRounds: totalSteps(room.Mode),
		}),
		outboxEvent(events.TypeRoundStarted, roundStartedPayload(&started, startedAt, deadline, durationSec)),
	}

	began, err := a.repo.BeginDraft(ctx, BeginDraftRequest{
		RoomID:      room.ID,
		Offers:      offers,
		StartedAt:   startedAt,
		Deadline:    deadline,
		DurationSec: durationSec,
		Outbox:      outbox,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin draft: %w", err)
	}
	if began {
		log.Info().
			Str("roomId", room.ID.String()).
			Str("mode", string(room.Mode)).
			Int("offers", len(offers)).
			Msg("Draft started")
		a.wake()
	}
	return a.repo.GetRoom(ctx, room.ID)
}

// SubmitPick validates and records a manual pick. Preconditions are checked
// in order and a failure is returned as a PickRejectedError with no state
// mutation. Re-picking the same card is an accepted no-op.
func (a *App) SubmitPick(ctx context.Context, code string, token uuid.UUID, cardID string) (*models.Room, error) {
	room, err := a.rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if room.Status != models.RoomStatusDrafting {
		return nil, rejected(RejectNotDrafting, fmt.Sprintf("room is %s", room.Status))
	}
	if room.Phase != models.RoundPhaseAccepting {
		return nil, rejected(RejectRoundLocked, "round is revealing")
	}

	role := rooms.ResolveRole(room, &token)
	side, ok := role.Side()
	if !ok {
		return nil, rejected(RejectSpectator, "spectators cannot pick")
	}

	offers, err := a.repo.OffersForRound(ctx, room.ID, room.Round)
	if err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}
	banked, err := a.bankedCards(ctx, room)
	if err != nil {
		return nil, err
	}
	active := activePicks(offers, banked)

	if room.Mode != models.RoomModeSequential {
		owner, open := turnOwner(room, active)
		if !open || owner != side {
			return nil, rejected(RejectWrongTurn, "not your turn")
		}
	}

	if room.NextDeadline != nil && a.clock.Now().After(*room.NextDeadline) {
		return nil, rejected(RejectDeadlinePast, "round deadline has elapsed")
	}

	var target *models.Offer
	for i := range offers {
		o := &offers[i]
		if o.CardID == cardID && o.VisibleTo(side) && !banked[o.CardID] {
			target = o
			break
		}
	}
	if target == nil {
		return nil, rejected(RejectNotOffered, fmt.Sprintf("card %s is not offered to you this round", cardID))
	}
	if target.PickedBy != nil {
		if *target.PickedBy == side {
			// Re-selecting the same card is not an error.
			return room, nil
		}
		return nil, rejected(RejectAlreadyTaken, "card already picked")
	}

	if room.Mode == models.RoomModeGrid && target.IsLegendary {
		held, err := a.repo.CountLegendaries(ctx, room.ID, side)
		if err != nil {
			return nil, fmt.Errorf("failed to count legendaries: %w", err)
		}
		if held >= GridLegendaryCap {
			return nil, rejected(RejectLegendaryHeld, "legendary cap reached")
		}
	}

	err = a.repo.ApplyPick(ctx, ApplyPickRequest{
		RoomID:  room.ID,
		Round:   room.Round,
		Side:    side,
		OfferID: target.ID,
		Outbox: []OutboxInsert{outboxEvent(events.TypePickMade, events.PickMadePayload{
			RoomID:   room.ID.String(),
			Round:    room.Round,
			Turn:     room.Turn,
			Side:     string(side),
			CardID:   target.CardID,
			CardName: target.CardName,
			MadeAt:   a.clock.Now().UTC(),
		})},
	})
	if err != nil {
		if err == ErrOfferTaken {
			return nil, rejected(RejectAlreadyTaken, "card already picked")
		}
		return nil, fmt.Errorf("failed to apply pick: %w", err)
	}

	log.Info().
		Str("roomId", room.ID.String()).
		Str("side", string(side)).
		Str("cardId", cardID).
		Int("round", room.Round).
		Msg("Pick recorded")

	if err := a.maybeResolveRound(ctx, room); err != nil {
		return nil, err
	}
	return a.repo.GetRoom(ctx, room.ID)
}

// maybeResolveRound re-reads the round and performs the accepting-to-
// revealing transition once every required side holds an active pick.
func (a *App) maybeResolveRound(ctx context.Context, room *models.Room) error {
	offers, err := a.repo.OffersForRound(ctx, room.ID, room.Round)
	if err != nil {
		return fmt.Errorf("failed to reload offers: %w", err)
	}
	banked, err := a.bankedCards(ctx, room)
	if err != nil {
		return err
	}
	active := activePicks(offers, banked)

	for _, side := range requiredSides(room) {
		if !active[side] {
			return nil
		}
	}
	return a.resolveRound(ctx, room)
}

// resolveRound marks the room revealing and schedules the reveal deadline.
func (a *App) resolveRound(ctx context.Context, room *models.Room) error {
	revealUntil := a.clock.Now().UTC().Add(time.Duration(a.timing.RevealDelaySec) * time.Second)
	outbox := []OutboxInsert{outboxEvent(events.TypeRoundResolved, events.RoundResolvedPayload{
		RoomID:     room.ID.String(),
		Round:      room.Round,
		Turn:       room.Turn,
		ResolvedAt: a.clock.Now().UTC(),
	})}

	won, err := a.repo.MarkRevealing(ctx, room.ID, room.Round, room.Turn, revealUntil, outbox)
	if err != nil {
		return fmt.Errorf("failed to resolve round: %w", err)
	}
	if won {
		log.Info().
			Str("roomId", room.ID.String()).
			Int("round", room.Round).
			Int("turn", room.Turn).
			Msg("Round resolved, revealing")
		a.wake()
	}
	return nil
}

// ResolveDeadline is the orchestrator entry point for a room whose deadline
// elapsed: auto-pick and resolve while accepting, bank and advance while
// revealing. Spurious wakeups are no-ops.
func (a *App) ResolveDeadline(ctx context.Context, roomID uuid.UUID) error {
	room, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to load room: %w", err)
	}
	if room.Status != models.RoomStatusDrafting || room.NextDeadline == nil {
		return nil
	}
	if a.clock.Now().Before(*room.NextDeadline) {
		return nil
	}

	switch room.Phase {
	case models.RoundPhaseAccepting:
		if err := a.autoCompleteRound(ctx, room); err != nil {
			return err
		}
		return a.resolveRound(ctx, room)
	case models.RoundPhaseRevealing:
		return a.advanceRoom(ctx, room)
	}
	return nil
}

// autoCompleteRound fills a pick for every required side that has none.
func (a *App) autoCompleteRound(ctx context.Context, room *models.Room) error {
	banked, err := a.bankedCards(ctx, room)
	if err != nil {
		return err
	}

	for _, side := range requiredSides(room) {
		// Re-read inside the loop: a shared offer claimed by the previous
		// side's auto pick, or by a concurrent manual pick, is no longer a
		// candidate.
		offers, err := a.repo.OffersForRound(ctx, room.ID, room.Round)
		if err != nil {
			return fmt.Errorf("failed to load offers: %w", err)
		}
		if activePicks(offers, banked)[side] {
			continue
		}

		var candidates []models.Offer
		for _, o := range offers {
			if o.PickedBy == nil && o.VisibleTo(side) && !banked[o.CardID] {
				candidates = append(candidates, o)
			}
		}

		constraint, err := a.pickConstraint(ctx, room, side, candidates)
		if err != nil {
			return err
		}
		choice, ok := a.strategy.SelectOffer(candidates, constraint)
		if !ok {
			// Nothing eligible remains; the slot stays unfilled rather
			// than blocking the session.
			log.Warn().
				Str("roomId", room.ID.String()).
				Str("side", string(side)).
				Int("round", room.Round).
				Msg("No eligible offer for auto pick, slot unfilled")
			continue
		}

		applied, err := a.repo.ApplyAutoPick(ctx, ApplyPickRequest{
			RoomID:  room.ID,
			Round:   room.Round,
			Side:    side,
			OfferID: choice.ID,
			Outbox: []OutboxInsert{outboxEvent(events.TypeAutoPickApplied, events.AutoPickAppliedPayload{
				RoomID:   room.ID.String(),
				Round:    room.Round,
				Turn:     room.Turn,
				Side:     string(side),
				CardID:   choice.CardID,
				CardName: choice.CardName,
				MadeAt:   a.clock.Now().UTC(),
			})},
		})
		if err != nil {
			return fmt.Errorf("failed to apply auto pick: %w", err)
		}
		if !applied {
			// A manual pick landed first; it wins.
			continue
		}
		log.Info().
			Str("roomId", room.ID.String()).
			Str("side", string(side)).
			Str("cardId", choice.CardID).
			Msg("Auto pick applied")
	}
	return nil
}

// pickConstraint computes the legendary rules for a grid side.
func (a *App) pickConstraint(ctx context.Context, room *models.Room, side models.Side, candidates []models.Offer) (PickConstraint, error) {
	if room.Mode != models.RoomModeGrid {
		return PickConstraint{}, nil
	}
	held, err := a.repo.CountLegendaries(ctx, room.ID, side)
	if err != nil {
		return PickConstraint{}, fmt.Errorf("failed to count legendaries: %w", err)
	}
	if held >= GridLegendaryCap {
		return PickConstraint{ExcludeLegendary: true}, nil
	}

	if sideTurnsRemaining(room, side) == 1 {
		for _, o := range candidates {
			if o.IsLegendary {
				return PickConstraint{ForceLegendary: true}, nil
			}
		}
	}
	return PickConstraint{}, nil
}

// advanceRoom banks the resolved picks and moves to the next round, next
// grid turn, or completion. Duplicate invocations are harmless.
func (a *App) advanceRoom(ctx context.Context, room *models.Room) error {
	offers, err := a.repo.OffersForRound(ctx, room.ID, room.Round)
	if err != nil {
		return fmt.Errorf("failed to load offers: %w", err)
	}
	banked, err := a.bankedCards(ctx, room)
	if err != nil {
		return err
	}

	seq := deckSeq(room)
	var entries []models.DeckEntry
	for _, o := range offers {
		if o.PickedBy == nil || banked[o.CardID] {
			continue
		}
		entries = append(entries, models.DeckEntry{
			RoomID:      room.ID,
			Side:        *o.PickedBy,
			Seq:         seq,
			CardID:      o.CardID,
			CardName:    o.CardName,
			CardImage:   o.CardImage,
			CardCost:    o.CardCost,
			IsLegendary: o.IsLegendary,
			IsSpell:     o.IsSpell,
		})
	}

	now := a.clock.Now().UTC()
	req := AdvanceRequest{
		RoomID:    room.ID,
		FromRound: room.Round,
		FromTurn:  room.Turn,
		Entries:   entries,
		Complete:  isFinalRound(room),
	}

	if req.Complete {
		req.Outbox = []OutboxInsert{outboxEvent(events.TypeDraftCompleted, events.DraftCompletedPayload{
			RoomID:      room.ID.String(),
			CompletedAt: now,
			TotalRounds: totalSteps(room.Mode),
		})}
	} else {
		next := *room
		if room.Mode == models.RoomModeGrid {
			next.Turn = room.Turn + 1
		} else {
			next.Round = room.Round + 1
		}
		durationSec := a.timing.RoundDurationSec(room.Mode, room.RoundDurationSec)
		deadline := now.Add(time.Duration(durationSec) * time.Second)

		req.NextRound = next.Round
		req.NextTurn = next.Turn
		req.StartedAt = now
		req.Deadline = deadline
		req.DurationSec = durationSec
		req.Outbox = []OutboxInsert{
			outboxEvent(events.TypeRoundAdvanced, events.RoundAdvancedPayload{
				RoomID:    room.ID.String(),
				FromRound: room.Round,
				ToRound:   next.Round,
				FromTurn:  room.Turn,
				ToTurn:    next.Turn,
				BankedAt:  now,
			}),
			outboxEvent(events.TypeRoundStarted, roundStartedPayload(&next, now, deadline, durationSec)),
		}
	}

	advanced, err := a.repo.Advance(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to advance room: %w", err)
	}
	if advanced {
		log.Info().
			Str("roomId", room.ID.String()).
			Int("fromRound", room.Round).
			Int("fromTurn", room.Turn).
			Bool("completed", req.Complete).
			Msg("Round banked and advanced")
		a.wake()
	}
	return nil
}

// RemainingTime returns whole seconds until the room's current deadline.
func (a *App) RemainingTime(ctx context.Context, code string) (int, error) {
	room, err := a.rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	return a.remainingSec(room), nil
}

func (a *App) remainingSec(room *models.Room) int {
	if room.Status != models.RoomStatusDrafting || room.NextDeadline == nil {
		return 0
	}
	remaining := room.NextDeadline.Sub(a.clock.Now())
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Second)
}

// Snapshot is the full read model for one room: current offers, both decks,
// and the computed time remaining. Reconnecting clients rebuild from this.
type Snapshot struct {
	Room         *models.Room                       `json:"room"`
	Role         models.Role                        `json:"role"`
	Offers       []models.Offer                     `json:"offers"`
	Decks        map[models.Side][]models.DeckEntry `json:"decks"`
	RemainingSec int                                `json:"remaining_sec"`
}

// GetSnapshot assembles the room read model for the caller identified by the
// optional seat token.
func (a *App) GetSnapshot(ctx context.Context, code string, token *uuid.UUID) (*Snapshot, error) {
	room, err := a.rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	role := rooms.ResolveRole(room, token)

	var offers []models.Offer
	if room.Status != models.RoomStatusWaiting && room.Round > 0 {
		offers, err = a.repo.OffersForRound(ctx, room.ID, room.Round)
		if err != nil {
			return nil, fmt.Errorf("failed to load offers: %w", err)
		}
	}

	entries, err := a.repo.DeckEntries(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deck entries: %w", err)
	}
	decks := make(map[models.Side][]models.DeckEntry)
	for _, e := range entries {
		decks[e.Side] = append(decks[e.Side], e)
	}

	return &Snapshot{
		Room:         room,
		Role:         role,
		Offers:       offers,
		Decks:        decks,
		RemainingSec: a.remainingSec(room),
	}, nil
}

// NextDeadline exposes the earliest pending deadline to the orchestrator.
func (a *App) NextDeadline(ctx context.Context) (*time.Time, error) {
	return a.repo.FetchNextDeadline(ctx)
}

// RoomsDue exposes rooms with elapsed deadlines to the orchestrator.
func (a *App) RoomsDue(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	return a.repo.FetchRoomsDue(ctx, limit)
}

// bankedCards returns the set of card ids the room has already banked. Only
// grid mode keeps picked offers around across turns, so other modes skip the
// read.
func (a *App) bankedCards(ctx context.Context, room *models.Room) (map[string]bool, error) {
	if room.Mode != models.RoomModeGrid {
		return map[string]bool{}, nil
	}
	entries, err := a.repo.DeckEntries(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deck entries: %w", err)
	}
	banked := make(map[string]bool, len(entries))
	for _, e := range entries {
		banked[e.CardID] = true
	}
	return banked, nil
}

// activePicks maps each side to whether it holds a live pick this round,
// ignoring picks whose cards were already banked in earlier grid turns.
func activePicks(offers []models.Offer, banked map[string]bool) map[models.Side]bool {
	active := make(map[models.Side]bool)
	for _, o := range offers {
		if o.PickedBy != nil && !banked[o.CardID] {
			active[*o.PickedBy] = true
		}
	}
	return active
}

// totalSteps is the number of banked picks that completes the mode.
func totalSteps(mode models.RoomMode) int {
	if mode == models.RoomModeGrid {
		return GridTotalTurns
	}
	return TotalRounds
}

func roundStartedPayload(room *models.Room, startedAt, deadline time.Time, durationSec int) events.RoundStartedPayload {
	payload := events.RoundStartedPayload{
		RoomID:      room.ID.String(),
		Round:       room.Round,
		Turn:        room.Turn,
		StartedAt:   startedAt,
		DeadlineAt:  deadline,
		DurationSec: durationSec,
	}
	if room.Mode != models.RoomModeSequential {
		owner, open := turnOwner(room, map[models.Side]bool{})
		if open {
			payload.TurnOwner = string(owner)
		}
	}
	return payload
}

func outboxEvent(eventType string, payload any) OutboxInsert {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payloads are plain structs; a marshal failure is a programming
		// error worth surfacing loudly.
		log.Error().Err(err).Str("eventType", eventType).Msg("Failed to marshal event payload")
		raw = []byte("{}")
	}
	return OutboxInsert{EventType: eventType, Payload: raw}
}
