package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/kestrelcg/draftroom/go/internal/draft/generator"
	"github.com/kestrelcg/draftroom/go/internal/models"
	"github.com/kestrelcg/draftroom/go/internal/sqlutil"
)

// ErrOfferTaken is returned when the requested offer was claimed by the
// opposing side between read and write.
var ErrOfferTaken = errors.New("offer already picked")

// Repository handles draft persistence: offers, deck entries, the guarded
// room state transitions, and the outbox rows written alongside them.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// OutboxInsert is one event row written inside the same transaction as the
// state change that produced it.
type OutboxInsert struct {
	EventType string
	Payload   []byte
}

// BeginDraftRequest carries everything the waiting-to-drafting transition
// writes in one transaction.
type BeginDraftRequest struct {
	RoomID      uuid.UUID
	Offers      []generator.Offer
	StartedAt   time.Time
	Deadline    time.Time
	DurationSec int
	Outbox      []OutboxInsert
}

// BeginDraft flips the room from WAITING to DRAFTING and bulk inserts the
// whole offer schedule in one transaction. The status flip is guarded, so
// under concurrent invocation exactly one caller performs the writes; the
// loser reports began=false with no effect.
func (r *Repository) BeginDraft(ctx context.Context, req BeginDraftRequest) (began bool, err error) {
	err = sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE rooms
			SET status = 'DRAFTING', phase = 'ACCEPTING', round = 1, turn = 1,
				round_started_at = $2, next_deadline = $3,
				round_duration_sec = $4, updated_at = NOW()
			WHERE id = $1 AND status = 'WAITING'`,
			req.RoomID, req.StartedAt, req.Deadline, req.DurationSec)
		if err != nil {
			return fmt.Errorf("failed to flip room to drafting: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Another caller won the transition.
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO offers (room_id, round, side, card_id, card_name,
				card_image, card_cost, is_legendary, is_spell)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
		if err != nil {
			return fmt.Errorf("failed to prepare offer insert: %w", err)
		}
		defer stmt.Close()

		for _, o := range req.Offers {
			if _, err := stmt.ExecContext(ctx, req.RoomID, o.Round, o.Side,
				o.Card.ID, o.Card.Name, o.Card.Image, o.Card.Cost,
				o.Card.IsLegendary, o.Card.IsSpell); err != nil {
				return fmt.Errorf("failed to insert offer for card %s: %w", o.Card.ID, err)
			}
		}

		if err := insertOutbox(ctx, tx, req.RoomID, req.Outbox); err != nil {
			return err
		}
		began = true
		return nil
	})
	return began, err
}

// ApplyPickRequest is a manual clear-then-set pick write.
type ApplyPickRequest struct {
	RoomID  uuid.UUID
	Round   int
	Side    models.Side
	OfferID uuid.UUID
	Outbox  []OutboxInsert
}

// ApplyPick atomically replaces the side's active pick for the round with
// the requested offer. Returns ErrOfferTaken when the offer was claimed
// first, leaving prior state untouched.
func (r *Repository) ApplyPick(ctx context.Context, req ApplyPickRequest) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		// Banked picks from earlier grid turns keep their picked_by; only
		// the side's live, unbanked pick is replaceable.
		_, err := tx.ExecContext(ctx, `
			UPDATE offers
			SET picked_by = NULL
			WHERE room_id = $1 AND round = $2 AND picked_by = $3 AND id <> $4
				AND NOT EXISTS (
					SELECT 1 FROM deck_entries d
					WHERE d.room_id = offers.room_id
						AND d.side = offers.picked_by
						AND d.card_id = offers.card_id
				)`,
			req.RoomID, req.Round, req.Side, req.OfferID)
		if err != nil {
			return fmt.Errorf("failed to clear prior pick: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE offers
			SET picked_by = $2
			WHERE id = $1 AND (picked_by IS NULL OR picked_by = $2)`,
			req.OfferID, req.Side)
		if err != nil {
			return fmt.Errorf("failed to set pick: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrOfferTaken
		}

		return insertOutbox(ctx, tx, req.RoomID, req.Outbox)
	})
}

// ApplyAutoPick claims the offer for the side only if the side still has no
// active pick recorded for the round. A manual pick that landed in the
// interim wins and the auto pick reports applied=false. Picks banked in
// earlier grid turns do not count as active.
func (r *Repository) ApplyAutoPick(ctx context.Context, req ApplyPickRequest) (applied bool, err error) {
	err = sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE offers
			SET picked_by = $3
			WHERE id = $2 AND picked_by IS NULL
				AND NOT EXISTS (
					SELECT 1 FROM offers o
					WHERE o.room_id = $1 AND o.round = $4 AND o.picked_by = $3
						AND NOT EXISTS (
							SELECT 1 FROM deck_entries d
							WHERE d.room_id = o.room_id
								AND d.side = o.picked_by
								AND d.card_id = o.card_id
						)
				)`,
			req.RoomID, req.OfferID, req.Side, req.Round)
		if err != nil {
			return fmt.Errorf("failed to apply auto pick: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		applied = true
		return insertOutbox(ctx, tx, req.RoomID, req.Outbox)
	})
	return applied, err
}

// MarkRevealing performs the guarded accepting-to-revealing transition for
// the given round and turn. At most one caller wins; the rest are no-ops.
func (r *Repository) MarkRevealing(ctx context.Context, roomID uuid.UUID, round, turn int, revealUntil time.Time, outbox []OutboxInsert) (won bool, err error) {
	err = sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE rooms
			SET phase = 'REVEALING', next_deadline = $4, updated_at = NOW()
			WHERE id = $1 AND status = 'DRAFTING' AND phase = 'ACCEPTING'
				AND round = $2 AND turn = $3`,
			roomID, round, turn, revealUntil)
		if err != nil {
			return fmt.Errorf("failed to mark revealing: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		won = true
		return insertOutbox(ctx, tx, roomID, outbox)
	})
	return won, err
}

// AdvanceRequest carries the banking plus round-advance transition.
type AdvanceRequest struct {
	RoomID    uuid.UUID
	FromRound int
	FromTurn  int
	Entries   []models.DeckEntry
	Complete  bool
	// Next round state, ignored when Complete.
	NextRound   int
	NextTurn    int
	StartedAt   time.Time
	Deadline    time.Time
	DurationSec int
	Outbox      []OutboxInsert
}

// Advance banks the round's picked offers as deck entries and moves the room
// to the next round or to COMPLETED, all in one transaction. Banking uses
// insert-if-absent and the room update is guarded on the revealing sub-state,
// so a duplicate invocation is harmless and reports advanced=false.
func (r *Repository) Advance(ctx context.Context, req AdvanceRequest) (advanced bool, err error) {
	err = sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		for _, e := range req.Entries {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO deck_entries (room_id, side, seq, card_id,
					card_name, card_image, card_cost, is_legendary, is_spell)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (room_id, side, seq) DO NOTHING`,
				e.RoomID, e.Side, e.Seq, e.CardID, e.CardName, e.CardImage,
				e.CardCost, e.IsLegendary, e.IsSpell); err != nil {
				return fmt.Errorf("failed to bank deck entry seq %d: %w", e.Seq, err)
			}
		}

		var (
			res sql.Result
		)
		if req.Complete {
			res, err = tx.ExecContext(ctx, `
				UPDATE rooms
				SET status = 'COMPLETED', next_deadline = NULL, updated_at = NOW()
				WHERE id = $1 AND status = 'DRAFTING' AND phase = 'REVEALING'
					AND round = $2 AND turn = $3`,
				req.RoomID, req.FromRound, req.FromTurn)
		} else {
			res, err = tx.ExecContext(ctx, `
				UPDATE rooms
				SET round = $4, turn = $5, phase = 'ACCEPTING',
					round_started_at = $6, next_deadline = $7,
					round_duration_sec = $8, updated_at = NOW()
				WHERE id = $1 AND status = 'DRAFTING' AND phase = 'REVEALING'
					AND round = $2 AND turn = $3`,
				req.RoomID, req.FromRound, req.FromTurn,
				req.NextRound, req.NextTurn, req.StartedAt, req.Deadline,
				req.DurationSec)
		}
		if err != nil {
			return fmt.Errorf("failed to advance room: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		advanced = true
		return insertOutbox(ctx, tx, req.RoomID, req.Outbox)
	})
	return advanced, err
}

// GetRoom retrieves a room by id.
func (r *Repository) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room, err := scanDraftRoom(r.db.QueryRowContext(ctx, `
		SELECT id, code, mode, status, phase, creator_name, joiner_name,
			creator_ready, joiner_ready, creator_token, joiner_token,
			first_picker, round, turn, round_started_at, round_duration_sec,
			next_deadline, settings, created_at, updated_at
		FROM rooms WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", id, err)
	}
	return room, nil
}

// OffersForRound returns every offer for a room round, all sides.
func (r *Repository) OffersForRound(ctx context.Context, roomID uuid.UUID, round int) ([]models.Offer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, room_id, round, side, card_id, card_name, card_image,
			card_cost, is_legendary, is_spell, picked_by
		FROM offers
		WHERE room_id = $1 AND round = $2
		ORDER BY card_cost, card_name`, roomID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch offers for round %d: %w", round, err)
	}
	defer rows.Close()
	return scanOffers(rows)
}

// DeckEntries returns every banked card for the room ordered by side and seq.
func (r *Repository) DeckEntries(ctx context.Context, roomID uuid.UUID) ([]models.DeckEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, room_id, side, seq, card_id, card_name, card_image,
			card_cost, is_legendary, is_spell, created_at
		FROM deck_entries
		WHERE room_id = $1
		ORDER BY side, seq`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deck entries: %w", err)
	}
	defer rows.Close()

	var entries []models.DeckEntry
	for rows.Next() {
		var e models.DeckEntry
		if err := rows.Scan(&e.ID, &e.RoomID, &e.Side, &e.Seq, &e.CardID,
			&e.CardName, &e.CardImage, &e.CardCost, &e.IsLegendary,
			&e.IsSpell, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deck entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deck entries: %w", err)
	}
	return entries, nil
}

// CountLegendaries counts the side's banked legendary cards.
func (r *Repository) CountLegendaries(ctx context.Context, roomID uuid.UUID, side models.Side) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM deck_entries
		WHERE room_id = $1 AND side = $2 AND is_legendary`, roomID, side).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count legendaries: %w", err)
	}
	return n, nil
}

// FetchNextDeadline returns the earliest pending deadline across all
// drafting rooms, or nil when none exist.
func (r *Repository) FetchNextDeadline(ctx context.Context) (*time.Time, error) {
	var deadline sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT MIN(next_deadline) FROM rooms
		WHERE status = 'DRAFTING' AND next_deadline IS NOT NULL`).Scan(&deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next deadline: %w", err)
	}
	return sqlutil.FromSqlTime(deadline), nil
}

// FetchRoomsDue returns ids of drafting rooms whose deadline has elapsed.
func (r *Repository) FetchRoomsDue(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM rooms
		WHERE status = 'DRAFTING' AND next_deadline IS NOT NULL
			AND next_deadline <= NOW()
		ORDER BY next_deadline
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due rooms: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan due room id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due rooms: %w", err)
	}
	return ids, nil
}

func insertOutbox(ctx context.Context, tx *sql.Tx, roomID uuid.UUID, inserts []OutboxInsert) error {
	for _, ins := range inserts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO room_outbox (room_id, event_type, payload)
			VALUES ($1, $2, $3)`,
			roomID, ins.EventType, ins.Payload); err != nil {
			return fmt.Errorf("failed to insert outbox %s: %w", ins.EventType, err)
		}
	}
	return nil
}

func scanOffers(rows *sql.Rows) ([]models.Offer, error) {
	var offers []models.Offer
	for rows.Next() {
		var (
			o        models.Offer
			pickedBy sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.RoomID, &o.Round, &o.Side, &o.CardID,
			&o.CardName, &o.CardImage, &o.CardCost, &o.IsLegendary,
			&o.IsSpell, &pickedBy); err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		if pickedBy.Valid {
			side := models.Side(pickedBy.String)
			o.PickedBy = &side
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate offers: %w", err)
	}
	return offers, nil
}

func scanDraftRoom(row interface{ Scan(dest ...any) error }) (*models.Room, error) {
	var (
		room           models.Room
		joinerName     sql.NullString
		joinerToken    uuid.NullUUID
		roundStartedAt sql.NullTime
		nextDeadline   sql.NullTime
		settings       pqtype.NullRawMessage
	)
	err := row.Scan(
		&room.ID, &room.Code, &room.Mode, &room.Status, &room.Phase,
		&room.CreatorName, &joinerName, &room.CreatorReady, &room.JoinerReady,
		&room.CreatorToken, &joinerToken, &room.FirstPicker,
		&room.Round, &room.Turn, &roundStartedAt, &room.RoundDurationSec,
		&nextDeadline, &settings, &room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	room.JoinerName = sqlutil.FromSqlStringPtr(joinerName)
	room.JoinerToken = sqlutil.FromNullUUID(joinerToken)
	room.RoundStartedAt = sqlutil.FromSqlTime(roundStartedAt)
	room.NextDeadline = sqlutil.FromSqlTime(nextDeadline)
	if settings.Valid {
		var s models.RoomSettings
		if err := json.Unmarshal(settings.RawMessage, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal room settings: %w", err)
		}
		room.Settings = &s
	}
	return &room, nil
}
