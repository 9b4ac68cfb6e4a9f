package draftroom_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/kestrelcg/draftroom/go/internal/draft"
	"github.com/kestrelcg/draftroom/go/internal/models"
)

type RoomWithToken struct {
	Room  *models.Room `json:"room"`
	Token string       `json:"token"`
}

type CreateRoomRequest struct {
	Mode     string               `json:"mode"`
	Name     string               `json:"name"`
	Settings *models.RoomSettings `json:"settings,omitempty"`
}

func (c *DraftRoomClient) CreateRoom(ctx context.Context, req CreateRoomRequest) (*RoomWithToken, error) {
	body, err := c.postJSON(ctx, RoomsEndpoint, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	var response RoomWithToken
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return &response, nil
}

func (c *DraftRoomClient) JoinRoom(ctx context.Context, code, name string) (*RoomWithToken, error) {
	endpoint := fmt.Sprintf(JoinEndpoint, url.PathEscape(code))
	body, err := c.postJSON(ctx, endpoint, map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	var response RoomWithToken
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return &response, nil
}

func (c *DraftRoomClient) SetReady(ctx context.Context, code string, token uuid.UUID, ready bool) (*models.Room, error) {
	endpoint := fmt.Sprintf(ReadyEndpoint, url.PathEscape(code))
	body, err := c.postJSON(ctx, endpoint, map[string]any{"token": token.String(), "ready": ready})
	if err != nil {
		return nil, fmt.Errorf("failed to set ready: %w", err)
	}
	return unmarshalRoom(body)
}

func (c *DraftRoomClient) StartDraft(ctx context.Context, code string) (*models.Room, error) {
	endpoint := fmt.Sprintf(StartEndpoint, url.PathEscape(code))
	body, err := c.Post(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start draft: %w", err)
	}
	return unmarshalRoom(body)
}

func (c *DraftRoomClient) SubmitPick(ctx context.Context, code string, token uuid.UUID, cardID string) (*models.Room, error) {
	endpoint := fmt.Sprintf(PickEndpoint, url.PathEscape(code))
	body, err := c.postJSON(ctx, endpoint, map[string]string{"token": token.String(), "card_id": cardID})
	if err != nil {
		return nil, fmt.Errorf("failed to submit pick: %w", err)
	}
	return unmarshalRoom(body)
}

func (c *DraftRoomClient) RemainingTime(ctx context.Context, code string) (int, error) {
	endpoint := fmt.Sprintf(TimeEndpoint, url.PathEscape(code))
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return 0, fmt.Errorf("failed to get remaining time: %w", err)
	}

	var response struct {
		RemainingSec int `json:"remaining_sec"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return response.RemainingSec, nil
}

// GetState fetches the room snapshot. A nil token yields the spectator view.
func (c *DraftRoomClient) GetState(ctx context.Context, code string, token *uuid.UUID) (*draft.Snapshot, error) {
	endpoint := fmt.Sprintf(StateEndpoint, url.PathEscape(code))
	if token != nil {
		endpoint += "?token=" + url.QueryEscape(token.String())
	}
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get room state: %w", err)
	}

	var response draft.Snapshot
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return &response, nil
}

func (c *DraftRoomClient) ExportDeckCode(ctx context.Context, code string, side models.Side) (string, error) {
	endpoint := fmt.Sprintf(DeckEndpoint, url.PathEscape(code), string(side))
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to export deck code: %w", err)
	}

	var response struct {
		DeckCode string `json:"deck_code"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return response.DeckCode, nil
}

func (c *DraftRoomClient) ListCards(ctx context.Context, query url.Values) ([]models.Card, error) {
	endpoint := CardsEndpoint
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	var response struct {
		Cards []models.Card `json:"cards"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return response.Cards, nil
}

func (c *DraftRoomClient) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.Post(ctx, endpoint, bytes.NewReader(encoded))
}

func unmarshalRoom(body []byte) (*models.Room, error) {
	var room models.Room
	if err := json.Unmarshal(body, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return &room, nil
}
