package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/kestrelcg/draftroom/go/internal/models"
)

// ErrSeatTaken is returned when joining a room whose seat is already filled
// or whose draft has started.
var ErrSeatTaken = errors.New("joiner seat is not available")

const createCodeAttempts = 5

// RoomRepository defines the room persistence operations the app needs
type RoomRepository interface {
	CreateRoom(ctx context.Context, params CreateRoomParams) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	ClaimJoinerSeat(ctx context.Context, id uuid.UUID, name string, token uuid.UUID) (*models.Room, error)
	SetReady(ctx context.Context, id uuid.UUID, side models.Side, ready bool) (*models.Room, error)
}

// App handles room lobby business logic
type App struct {
	repo RoomRepository
}

func NewApp(repo RoomRepository) *App {
	return &App{repo: repo}
}

// CreateRoom opens a new room and returns it together with the creator's
// seat token. The join code is regenerated on the rare code collision.
func (a *App) CreateRoom(ctx context.Context, mode models.RoomMode, creatorName string, settings *models.RoomSettings) (*models.Room, uuid.UUID, error) {
	if err := validateMode(mode); err != nil {
		return nil, uuid.Nil, err
	}
	if creatorName == "" {
		return nil, uuid.Nil, fmt.Errorf("creator name is required")
	}

	token := uuid.New()
	durationSec := defaultRoundDuration(mode)
	if settings != nil && settings.RoundDurationSec > 0 {
		durationSec = settings.RoundDurationSec
	}

	var lastErr error
	for attempt := 0; attempt < createCodeAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, uuid.Nil, err
		}

		room, err := a.repo.CreateRoom(ctx, CreateRoomParams{
			Code:             code,
			Mode:             mode,
			CreatorName:      creatorName,
			CreatorToken:     token,
			FirstPicker:      models.SideCreator,
			RoundDurationSec: durationSec,
			Settings:         settings,
		})
		if err == nil {
			log.Info().
				Str("roomId", room.ID.String()).
				Str("code", room.Code).
				Str("mode", string(room.Mode)).
				Msg("Room created")
			return room, token, nil
		}
		if !isUniqueViolation(err) {
			return nil, uuid.Nil, err
		}
		lastErr = err
	}
	return nil, uuid.Nil, fmt.Errorf("failed to allocate room code after %d attempts: %w", createCodeAttempts, lastErr)
}

// JoinRoom claims the joiner seat of the room with the given code and returns
// the room together with the joiner's seat token.
func (a *App) JoinRoom(ctx context.Context, code, joinerName string) (*models.Room, uuid.UUID, error) {
	if joinerName == "" {
		return nil, uuid.Nil, fmt.Errorf("joiner name is required")
	}

	room, err := a.repo.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, uuid.Nil, err
	}

	token := uuid.New()
	room, err = a.repo.ClaimJoinerSeat(ctx, room.ID, joinerName, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, uuid.Nil, ErrSeatTaken
		}
		return nil, uuid.Nil, fmt.Errorf("failed to claim joiner seat: %w", err)
	}

	log.Info().
		Str("roomId", room.ID.String()).
		Str("joiner", joinerName).
		Msg("Joiner seat claimed")
	return room, token, nil
}

func (a *App) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return a.repo.GetRoom(ctx, id)
}

func (a *App) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	return a.repo.GetRoomByCode(ctx, code)
}

// SetReady flips a seat's ready flag. Only seated players may ready up.
func (a *App) SetReady(ctx context.Context, id uuid.UUID, side models.Side, ready bool) (*models.Room, error) {
	room, err := a.repo.SetReady(ctx, id, side, ready)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s is no longer waiting", id)
		}
		return nil, fmt.Errorf("failed to set ready: %w", err)
	}
	return room, nil
}

// ResolveRole maps a seat token to the caller's role in the room. A missing
// or unknown token makes the caller a spectator.
func ResolveRole(room *models.Room, token *uuid.UUID) models.Role {
	if token == nil {
		return models.RoleSpectator
	}
	if *token == room.CreatorToken {
		return models.RoleCreator
	}
	if room.JoinerToken != nil && *token == *room.JoinerToken {
		return models.RoleJoiner
	}
	return models.RoleSpectator
}

func validateMode(mode models.RoomMode) error {
	switch mode {
	case models.RoomModeSequential, models.RoomModeAlternating, models.RoomModeGrid:
		return nil
	default:
		return fmt.Errorf("unknown room mode %q", mode)
	}
}

func defaultRoundDuration(mode models.RoomMode) int {
	switch mode {
	case models.RoomModeAlternating:
		return 8
	case models.RoomModeGrid:
		return 10
	default:
		return 15
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
