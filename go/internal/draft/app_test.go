package draft

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelcg/draftroom/go/internal/draft/events"
	"github.com/kestrelcg/draftroom/go/internal/models"
)

// fakeStore is an in-memory stand-in for the draft repository and rooms app.
// It mirrors the guarded-write semantics of the SQL layer: status flips,
// reveal marks, and advances only apply when the recorded state still
// matches, and banking is insert-if-absent on (room, side, seq).
type fakeStore struct {
	mu     sync.Mutex
	room   *models.Room
	offers []models.Offer
	decks  []models.DeckEntry
	events []string
}

func (f *fakeStore) roomCopy() *models.Room {
	r := *f.room
	return &r
}

func (f *fakeStore) recordOutbox(inserts []OutboxInsert) {
	for _, ins := range inserts {
		f.events = append(f.events, ins.EventType)
	}
}

func (f *fakeStore) bankedSet() map[models.Side]map[string]bool {
	banked := map[models.Side]map[string]bool{
		models.SideCreator: {},
		models.SideJoiner:  {},
	}
	for _, e := range f.decks {
		banked[e.Side][e.CardID] = true
	}
	return banked
}

func (f *fakeStore) BeginDraft(_ context.Context, req BeginDraftRequest) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.room.Status != models.RoomStatusWaiting {
		return false, nil
	}
	f.room.Status = models.RoomStatusDrafting
	f.room.Phase = models.RoundPhaseAccepting
	f.room.Round, f.room.Turn = 1, 1
	started := req.StartedAt
	f.room.RoundStartedAt = &started
	deadline := req.Deadline
	f.room.NextDeadline = &deadline
	f.room.RoundDurationSec = req.DurationSec
	for _, o := range req.Offers {
		f.offers = append(f.offers, models.Offer{
			ID:          uuid.New(),
			RoomID:      req.RoomID,
			Round:       o.Round,
			Side:        o.Side,
			CardID:      o.Card.ID,
			CardName:    o.Card.Name,
			CardImage:   o.Card.Image,
			CardCost:    o.Card.Cost,
			IsLegendary: o.Card.IsLegendary,
			IsSpell:     o.Card.IsSpell,
		})
	}
	f.recordOutbox(req.Outbox)
	return true, nil
}

func (f *fakeStore) ApplyPick(_ context.Context, req ApplyPickRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var target *models.Offer
	for i := range f.offers {
		if f.offers[i].ID == req.OfferID {
			target = &f.offers[i]
		}
	}
	if target == nil || (target.PickedBy != nil && *target.PickedBy != req.Side) {
		return ErrOfferTaken
	}

	banked := f.bankedSet()
	for i := range f.offers {
		o := &f.offers[i]
		if o.RoomID == req.RoomID && o.Round == req.Round && o.ID != req.OfferID &&
			o.PickedBy != nil && *o.PickedBy == req.Side && !banked[req.Side][o.CardID] {
			o.PickedBy = nil
		}
	}
	side := req.Side
	target.PickedBy = &side
	f.recordOutbox(req.Outbox)
	return nil
}

func (f *fakeStore) ApplyAutoPick(_ context.Context, req ApplyPickRequest) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	banked := f.bankedSet()
	for _, o := range f.offers {
		if o.RoomID == req.RoomID && o.Round == req.Round &&
			o.PickedBy != nil && *o.PickedBy == req.Side && !banked[req.Side][o.CardID] {
			return false, nil
		}
	}
	for i := range f.offers {
		o := &f.offers[i]
		if o.ID == req.OfferID && o.PickedBy == nil {
			side := req.Side
			o.PickedBy = &side
			f.recordOutbox(req.Outbox)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MarkRevealing(_ context.Context, roomID uuid.UUID, round, turn int, revealUntil time.Time, outbox []OutboxInsert) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.room.Status != models.RoomStatusDrafting || f.room.Phase != models.RoundPhaseAccepting ||
		f.room.Round != round || f.room.Turn != turn {
		return false, nil
	}
	f.room.Phase = models.RoundPhaseRevealing
	deadline := revealUntil
	f.room.NextDeadline = &deadline
	f.recordOutbox(outbox)
	return true, nil
}

func (f *fakeStore) Advance(_ context.Context, req AdvanceRequest) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range req.Entries {
		exists := false
		for _, have := range f.decks {
			if have.RoomID == e.RoomID && have.Side == e.Side && have.Seq == e.Seq {
				exists = true
				break
			}
		}
		if !exists {
			e.ID = uuid.New()
			f.decks = append(f.decks, e)
		}
	}

	if f.room.Status != models.RoomStatusDrafting || f.room.Phase != models.RoundPhaseRevealing ||
		f.room.Round != req.FromRound || f.room.Turn != req.FromTurn {
		return false, nil
	}
	if req.Complete {
		f.room.Status = models.RoomStatusCompleted
		f.room.NextDeadline = nil
	} else {
		f.room.Round, f.room.Turn = req.NextRound, req.NextTurn
		f.room.Phase = models.RoundPhaseAccepting
		started, deadline := req.StartedAt, req.Deadline
		f.room.RoundStartedAt = &started
		f.room.NextDeadline = &deadline
		f.room.RoundDurationSec = req.DurationSec
	}
	f.recordOutbox(req.Outbox)
	return true, nil
}

func (f *fakeStore) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.room.ID != id {
		return nil, fmt.Errorf("room %s not found", id)
	}
	return f.roomCopy(), nil
}

func (f *fakeStore) GetRoomByCode(_ context.Context, code string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.room.Code != code {
		return nil, fmt.Errorf("room %s not found", code)
	}
	return f.roomCopy(), nil
}

func (f *fakeStore) SetReady(_ context.Context, id uuid.UUID, side models.Side, ready bool) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.room.Status == models.RoomStatusWaiting {
		if side == models.SideCreator {
			f.room.CreatorReady = ready
		} else {
			f.room.JoinerReady = ready
		}
	}
	return f.roomCopy(), nil
}

func (f *fakeStore) OffersForRound(_ context.Context, roomID uuid.UUID, round int) ([]models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Offer
	for _, o := range f.offers {
		if o.RoomID == roomID && o.Round == round {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) DeckEntries(_ context.Context, roomID uuid.UUID) ([]models.DeckEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DeckEntry(nil), f.decks...), nil
}

func (f *fakeStore) CountLegendaries(_ context.Context, roomID uuid.UUID, side models.Side) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.decks {
		if e.Side == side && e.IsLegendary {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) FetchNextDeadline(_ context.Context) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.room.Status == models.RoomStatusDrafting && f.room.NextDeadline != nil {
		d := *f.room.NextDeadline
		return &d, nil
	}
	return nil, nil
}

func (f *fakeStore) FetchRoomsDue(_ context.Context, limit int32) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeStore) eventCount(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type fakeCatalog []models.Card

func (c fakeCatalog) AllCards(context.Context) ([]models.Card, error) {
	return c, nil
}

func draftCatalog() fakeCatalog {
	var cards fakeCatalog
	for cost := 1; cost <= 12; cost++ {
		for n := 0; n < 6; n++ {
			cards = append(cards, models.Card{
				ID:   fmt.Sprintf("c%02d-%d", cost, n),
				Name: fmt.Sprintf("Cost %d Creature %d", cost, n),
				Cost: cost,
			})
		}
	}
	for n := 0; n < 4; n++ {
		cards = append(cards, models.Card{
			ID:          fmt.Sprintf("legend-%d", n),
			Name:        fmt.Sprintf("Legend %d", n),
			Cost:        8 + n,
			IsLegendary: true,
		})
	}
	for n := 0; n < 4; n++ {
		cards = append(cards, models.Card{
			ID:      fmt.Sprintf("spell-%d", n),
			Name:    fmt.Sprintf("Spell %d", n),
			Cost:    11 + n%2,
			IsSpell: true,
		})
	}
	return cards
}

type fixture struct {
	app   *App
	store *fakeStore
	clock *clockwork.FakeClock
	ctx   context.Context

	creatorToken uuid.UUID
	joinerToken  uuid.UUID
}

func newFixture(t *testing.T, mode models.RoomMode) *fixture {
	return newFixtureWithSeed(t, mode, 7)
}

func newFixtureWithSeed(t *testing.T, mode models.RoomMode, seed int64) *fixture {
	t.Helper()

	creatorToken, joinerToken := uuid.New(), uuid.New()
	joinerName := "bob"
	store := &fakeStore{
		room: &models.Room{
			ID:           uuid.New(),
			Code:         "ABC123",
			Mode:         mode,
			Status:       models.RoomStatusWaiting,
			Phase:        models.RoundPhaseAccepting,
			CreatorName:  "alice",
			JoinerName:   &joinerName,
			CreatorToken: creatorToken,
			JoinerToken:  &joinerToken,
			FirstPicker:  models.SideCreator,
			CreatedAt:    time.Now(),
		},
	}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	app := NewApp(store, store, draftCatalog(), NewSeededStrategy(seed), DefaultTiming(), clock)

	return &fixture{
		app:          app,
		store:        store,
		clock:        clock,
		ctx:          context.Background(),
		creatorToken: creatorToken,
		joinerToken:  joinerToken,
	}
}

func (fx *fixture) start(t *testing.T) *models.Room {
	t.Helper()
	_, err := fx.app.SubmitReady(fx.ctx, "ABC123", fx.creatorToken, true)
	require.NoError(t, err)
	room, err := fx.app.SubmitReady(fx.ctx, "ABC123", fx.joinerToken, true)
	require.NoError(t, err)
	require.Equal(t, models.RoomStatusDrafting, room.Status)
	return room
}

// runOutDeadline moves the clock to the room's pending deadline and fires the
// orchestrator entry point, like the real scheduler would.
func (fx *fixture) runOutDeadline(t *testing.T) {
	t.Helper()
	fx.store.mu.Lock()
	deadline := fx.store.room.NextDeadline
	fx.store.mu.Unlock()
	require.NotNil(t, deadline)
	if remaining := deadline.Sub(fx.clock.Now()); remaining > 0 {
		fx.clock.Advance(remaining)
	}
	require.NoError(t, fx.app.ResolveDeadline(fx.ctx, fx.store.room.ID))
}

// visibleUnpicked returns an offered card the side can still take this round.
func (fx *fixture) visibleUnpicked(t *testing.T, side models.Side) string {
	t.Helper()
	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	banked := fx.store.bankedSet()
	for _, o := range fx.store.offers {
		if o.Round == fx.store.room.Round && o.VisibleTo(side) && o.PickedBy == nil &&
			!banked[models.SideCreator][o.CardID] && !banked[models.SideJoiner][o.CardID] {
			return o.CardID
		}
	}
	t.Fatal("no unpicked offer available")
	return ""
}

func TestSequentialDraftHappyPath(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)
	fx.start(t)

	var lastStart time.Time
	for round := 1; round <= 13; round++ {
		room, err := fx.app.GetSnapshot(fx.ctx, "ABC123", &fx.creatorToken)
		require.NoError(t, err)
		require.Equal(t, round, room.Room.Round)
		require.Equal(t, models.RoundPhaseAccepting, room.Room.Phase)

		// Round start timestamps never move backwards.
		require.NotNil(t, room.Room.RoundStartedAt)
		require.False(t, room.Room.RoundStartedAt.Before(lastStart))
		lastStart = *room.Room.RoundStartedAt

		_, err = fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, fx.visibleUnpicked(t, models.SideCreator))
		require.NoError(t, err)
		updated, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.joinerToken, fx.visibleUnpicked(t, models.SideJoiner))
		require.NoError(t, err)
		require.Equal(t, models.RoundPhaseRevealing, updated.Phase)

		fx.runOutDeadline(t)
	}

	final, err := fx.app.GetSnapshot(fx.ctx, "ABC123", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusCompleted, final.Room.Status)
	assert.Len(t, final.Decks[models.SideCreator], 13)
	assert.Len(t, final.Decks[models.SideJoiner], 13)

	assert.Equal(t, 1, fx.store.eventCount(events.TypeDraftStarted))
	assert.Equal(t, 13, fx.store.eventCount(events.TypeRoundStarted))
	assert.Equal(t, 12, fx.store.eventCount(events.TypeRoundAdvanced))
	assert.Equal(t, 1, fx.store.eventCount(events.TypeDraftCompleted))
}

func TestStartDraftIdempotent(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)
	fx.start(t)

	offersBefore := len(fx.store.offers)
	room, err := fx.app.StartDraft(fx.ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusDrafting, room.Status)
	assert.Len(t, fx.store.offers, offersBefore)
	assert.Equal(t, 1, fx.store.eventCount(events.TypeDraftStarted))
}

func TestTimeoutAutoCompletesBothSides(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)
	fx.start(t)

	// Nobody picks; the deadline fires auto picks and resolves the round.
	fx.runOutDeadline(t)
	room, err := fx.app.GetSnapshot(fx.ctx, "ABC123", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoundPhaseRevealing, room.Room.Phase)
	assert.Equal(t, 2, fx.store.eventCount(events.TypeAutoPickApplied))

	// Reveal expiry banks both sides and opens round 2.
	fx.runOutDeadline(t)
	room, err = fx.app.GetSnapshot(fx.ctx, "ABC123", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, room.Room.Round)
	assert.Len(t, room.Decks[models.SideCreator], 1)
	assert.Len(t, room.Decks[models.SideJoiner], 1)
}

func TestTimeoutKeepsManualPick(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)
	fx.start(t)

	picked := fx.visibleUnpicked(t, models.SideCreator)
	_, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, picked)
	require.NoError(t, err)

	fx.runOutDeadline(t)
	fx.runOutDeadline(t)

	room, err := fx.app.GetSnapshot(fx.ctx, "ABC123", nil)
	require.NoError(t, err)
	require.Len(t, room.Decks[models.SideCreator], 1)
	assert.Equal(t, picked, room.Decks[models.SideCreator][0].CardID)
	assert.Equal(t, 1, fx.store.eventCount(events.TypeAutoPickApplied))
}

func TestRepeatedDeadlineResolutionBanksOnce(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)
	fx.start(t)

	fx.runOutDeadline(t)

	// A racing scheduler instance fires the same elapsed deadline again.
	require.NoError(t, fx.app.ResolveDeadline(fx.ctx, fx.store.room.ID))
	fx.runOutDeadline(t)
	require.NoError(t, fx.app.ResolveDeadline(fx.ctx, fx.store.room.ID))

	room, err := fx.app.GetSnapshot(fx.ctx, "ABC123", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, room.Room.Round)
	assert.Len(t, room.Decks[models.SideCreator], 1)
	assert.Len(t, room.Decks[models.SideJoiner], 1)
}

func TestSpectatorCannotPick(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)
	fx.start(t)

	_, err := fx.app.SubmitPick(fx.ctx, "ABC123", uuid.New(), fx.visibleUnpicked(t, models.SideCreator))
	var pickErr *PickRejectedError
	require.ErrorAs(t, err, &pickErr)
	assert.Equal(t, RejectSpectator, pickErr.Reason)
}

func TestPickBeforeDraftStarts(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)

	_, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, "c01-0")
	var pickErr *PickRejectedError
	require.ErrorAs(t, err, &pickErr)
	assert.Equal(t, RejectNotDrafting, pickErr.Reason)
}

func TestPickAfterDeadline(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)
	fx.start(t)

	fx.clock.Advance(16 * time.Second)
	_, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, fx.visibleUnpicked(t, models.SideCreator))
	var pickErr *PickRejectedError
	require.ErrorAs(t, err, &pickErr)
	assert.Equal(t, RejectDeadlinePast, pickErr.Reason)
}

func TestPickDuringReveal(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)
	fx.start(t)

	_, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, fx.visibleUnpicked(t, models.SideCreator))
	require.NoError(t, err)
	_, err = fx.app.SubmitPick(fx.ctx, "ABC123", fx.joinerToken, fx.visibleUnpicked(t, models.SideJoiner))
	require.NoError(t, err)

	_, err = fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, "c01-0")
	var pickErr *PickRejectedError
	require.ErrorAs(t, err, &pickErr)
	assert.Equal(t, RejectRoundLocked, pickErr.Reason)
}

func TestPickUnofferedCard(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)
	fx.start(t)

	_, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, "no-such-card")
	var pickErr *PickRejectedError
	require.ErrorAs(t, err, &pickErr)
	assert.Equal(t, RejectNotOffered, pickErr.Reason)
}

func TestRepickSameCardIsNoOp(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)
	fx.start(t)

	cardID := fx.visibleUnpicked(t, models.SideCreator)
	_, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, cardID)
	require.NoError(t, err)
	_, err = fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, cardID)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.store.eventCount(events.TypePickMade))
}

func TestAlternatingTurnOrderEnforced(t *testing.T) {
	fx := newFixture(t, models.RoomModeAlternating)
	fx.start(t)

	// Round 1 opens with the creator; the joiner must wait.
	_, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.joinerToken, fx.visibleUnpicked(t, models.SideJoiner))
	var pickErr *PickRejectedError
	require.ErrorAs(t, err, &pickErr)
	assert.Equal(t, RejectWrongTurn, pickErr.Reason)

	_, err = fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, fx.visibleUnpicked(t, models.SideCreator))
	require.NoError(t, err)

	room, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.joinerToken, fx.visibleUnpicked(t, models.SideJoiner))
	require.NoError(t, err)
	assert.Equal(t, models.RoundPhaseRevealing, room.Phase)
}

func TestAlternatingTakenCardRejected(t *testing.T) {
	fx := newFixture(t, models.RoomModeAlternating)
	fx.start(t)

	cardID := fx.visibleUnpicked(t, models.SideCreator)
	_, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, cardID)
	require.NoError(t, err)

	_, err = fx.app.SubmitPick(fx.ctx, "ABC123", fx.joinerToken, cardID)
	var pickErr *PickRejectedError
	require.ErrorAs(t, err, &pickErr)
	assert.Equal(t, RejectAlreadyTaken, pickErr.Reason)
}

func TestAlternatingTimeoutBanksBothSides(t *testing.T) {
	fx := newFixture(t, models.RoomModeAlternating)
	fx.start(t)

	fx.runOutDeadline(t)
	assert.Equal(t, 2, fx.store.eventCount(events.TypeAutoPickApplied))

	fx.runOutDeadline(t)
	room, err := fx.app.GetSnapshot(fx.ctx, "ABC123", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, room.Room.Round)
	assert.Len(t, room.Decks[models.SideCreator], 1)
	assert.Len(t, room.Decks[models.SideJoiner], 1)
}

func TestAlternatingFullDraft(t *testing.T) {
	fx := newFixture(t, models.RoomModeAlternating)
	fx.start(t)

	for round := 1; round <= 13; round++ {
		fx.runOutDeadline(t)
		fx.runOutDeadline(t)
	}

	room, err := fx.app.GetSnapshot(fx.ctx, "ABC123", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusCompleted, room.Room.Status)
	assert.Len(t, room.Decks[models.SideCreator], 13)
	assert.Len(t, room.Decks[models.SideJoiner], 13)
}

func TestAlternatingTimeoutNeverLeavesASideUnfilled(t *testing.T) {
	// Both sides auto pick from the same three shared offers, so the second
	// side's candidate list must exclude whatever the first side just took.
	// Swept across strategy seeds to cover colliding selections.
	for seed := int64(0); seed < 8; seed++ {
		fx := newFixtureWithSeed(t, models.RoomModeAlternating, seed)
		fx.start(t)

		for round := 1; round <= 13; round++ {
			fx.runOutDeadline(t)
			fx.runOutDeadline(t)
		}

		room, err := fx.app.GetSnapshot(fx.ctx, "ABC123", nil)
		require.NoError(t, err)
		require.Equal(t, models.RoomStatusCompleted, room.Room.Status, "seed %d", seed)
		require.Len(t, room.Decks[models.SideCreator], 13, "seed %d", seed)
		require.Len(t, room.Decks[models.SideJoiner], 13, "seed %d", seed)

		creator := make(map[string]bool)
		for _, e := range room.Decks[models.SideCreator] {
			creator[e.CardID] = true
		}
		for _, e := range room.Decks[models.SideJoiner] {
			require.False(t, creator[e.CardID], "seed %d: card %s banked on both sides", seed, e.CardID)
		}
	}
}

// gridPickCard finds an offer matching the predicate that is still takeable.
func (fx *fixture) gridPickCard(t *testing.T, wantLegendary bool) string {
	t.Helper()
	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	banked := fx.store.bankedSet()
	for _, o := range fx.store.offers {
		if o.IsLegendary == wantLegendary && o.PickedBy == nil &&
			!banked[models.SideCreator][o.CardID] && !banked[models.SideJoiner][o.CardID] {
			return o.CardID
		}
	}
	t.Fatalf("no takeable offer with legendary=%v", wantLegendary)
	return ""
}

func TestGridLegendaryCapEnforced(t *testing.T) {
	fx := newFixture(t, models.RoomModeGrid)
	fx.start(t)

	// Turn 1: creator banks a legendary.
	_, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, fx.gridPickCard(t, true))
	require.NoError(t, err)
	fx.runOutDeadline(t)

	// Turn 2: joiner takes any card.
	_, err = fx.app.SubmitPick(fx.ctx, "ABC123", fx.joinerToken, fx.gridPickCard(t, false))
	require.NoError(t, err)
	fx.runOutDeadline(t)

	// Turn 3: a second legendary for the creator is refused.
	_, err = fx.app.SubmitPick(fx.ctx, "ABC123", fx.creatorToken, fx.gridPickCard(t, true))
	var pickErr *PickRejectedError
	require.ErrorAs(t, err, &pickErr)
	assert.Equal(t, RejectLegendaryHeld, pickErr.Reason)
}

func TestGridFullDraftByTimeout(t *testing.T) {
	fx := newFixture(t, models.RoomModeGrid)
	fx.start(t)

	for turn := 1; turn <= 23; turn++ {
		fx.runOutDeadline(t)
		fx.runOutDeadline(t)
	}

	room, err := fx.app.GetSnapshot(fx.ctx, "ABC123", nil)
	require.NoError(t, err)
	require.Equal(t, models.RoomStatusCompleted, room.Room.Status)
	assert.Len(t, room.Decks[models.SideCreator], 12)
	assert.Len(t, room.Decks[models.SideJoiner], 11)

	// The legendary cap holds even under pure auto picks.
	for _, side := range []models.Side{models.SideCreator, models.SideJoiner} {
		legendaries := 0
		for _, e := range room.Decks[side] {
			if e.IsLegendary {
				legendaries++
			}
		}
		assert.LessOrEqual(t, legendaries, GridLegendaryCap)
	}
}

func TestGridTurnOwnershipEnforced(t *testing.T) {
	fx := newFixture(t, models.RoomModeGrid)
	fx.start(t)

	_, err := fx.app.SubmitPick(fx.ctx, "ABC123", fx.joinerToken, fx.gridPickCard(t, false))
	var pickErr *PickRejectedError
	require.ErrorAs(t, err, &pickErr)
	assert.Equal(t, RejectWrongTurn, pickErr.Reason)
}

func TestRemainingTimeCountsDown(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)
	fx.start(t)

	remaining, err := fx.app.RemainingTime(fx.ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 15, remaining)

	fx.clock.Advance(6 * time.Second)
	remaining, err = fx.app.RemainingTime(fx.ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 9, remaining)
}

func TestSubmitReadySpectatorRejected(t *testing.T) {
	fx := newFixture(t, models.RoomModeSequential)

	_, err := fx.app.SubmitReady(fx.ctx, "ABC123", uuid.New(), true)
	var pickErr *PickRejectedError
	require.ErrorAs(t, err, &pickErr)
	assert.Equal(t, RejectSpectator, pickErr.Reason)
}
