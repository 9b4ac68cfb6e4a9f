package rooms

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/kestrelcg/draftroom/go/internal/models"
	"github.com/kestrelcg/draftroom/go/internal/sqlutil"
)

// Repository handles room persistence operations
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const roomColumns = `id, code, mode, status, phase, creator_name, joiner_name,
	creator_ready, joiner_ready, creator_token, joiner_token, first_picker,
	round, turn, round_started_at, round_duration_sec, next_deadline,
	settings, created_at, updated_at`

// CreateRoomParams carries the fields needed to open a new room
type CreateRoomParams struct {
	Code             string
	Mode             models.RoomMode
	CreatorName      string
	CreatorToken     uuid.UUID
	FirstPicker      models.Side
	RoundDurationSec int
	Settings         *models.RoomSettings
}

// CreateRoom inserts a new room in the WAITING state.
func (r *Repository) CreateRoom(ctx context.Context, params CreateRoomParams) (*models.Room, error) {
	settings, err := settingsToRaw(params.Settings)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO rooms (code, mode, status, phase, creator_name, creator_ready,
			joiner_ready, creator_token, first_picker, round, turn,
			round_duration_sec, settings)
		VALUES ($1, $2, 'WAITING', 'ACCEPTING', $3, FALSE, FALSE, $4, $5, 0, 0, $6, $7)
		RETURNING ` + roomColumns

	row := r.db.QueryRowContext(ctx, query,
		params.Code, params.Mode, params.CreatorName, params.CreatorToken,
		params.FirstPicker, params.RoundDurationSec, settings)

	room, err := scanRoom(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, nil
}

// GetRoom retrieves a room by its id.
func (r *Repository) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", id, err)
	}
	return room, nil
}

// GetRoomByCode retrieves a room by its join code.
func (r *Repository) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE code = $1`
	room, err := scanRoom(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		return nil, fmt.Errorf("failed to get room by code %s: %w", code, err)
	}
	return room, nil
}

// ClaimJoinerSeat fills the joiner seat if it is still open and the room is
// waiting. Returns sql.ErrNoRows when the seat was already taken or the draft
// has started.
func (r *Repository) ClaimJoinerSeat(ctx context.Context, id uuid.UUID, name string, token uuid.UUID) (*models.Room, error) {
	query := `
		UPDATE rooms
		SET joiner_name = $2, joiner_token = $3, updated_at = NOW()
		WHERE id = $1 AND joiner_name IS NULL AND status = 'WAITING'
		RETURNING ` + roomColumns

	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id, name, token))
	if err != nil {
		return nil, err
	}
	return room, nil
}

// SetReady flips a seat's ready flag while the room is still waiting.
func (r *Repository) SetReady(ctx context.Context, id uuid.UUID, side models.Side, ready bool) (*models.Room, error) {
	var column string
	switch side {
	case models.SideCreator:
		column = "creator_ready"
	case models.SideJoiner:
		column = "joiner_ready"
	default:
		return nil, fmt.Errorf("cannot set ready for side %s", side)
	}

	query := fmt.Sprintf(`
		UPDATE rooms
		SET %s = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'WAITING'
		RETURNING `+roomColumns, column)

	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id, ready))
	if err != nil {
		return nil, err
	}
	return room, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
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

func settingsToRaw(settings *models.RoomSettings) (pqtype.NullRawMessage, error) {
	if settings == nil {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("failed to marshal room settings: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}
