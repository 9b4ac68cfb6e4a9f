package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelcg/draftroom/go/internal/catalog"
	"github.com/kestrelcg/draftroom/go/internal/content"
	"github.com/kestrelcg/draftroom/go/internal/deckcode"
	"github.com/kestrelcg/draftroom/go/internal/draft"
	"github.com/kestrelcg/draftroom/go/internal/draft/generator"
	"github.com/kestrelcg/draftroom/go/internal/models"
	"github.com/kestrelcg/draftroom/go/internal/rooms"
)

type stubServices struct {
	createRoom  func(mode models.RoomMode, name string, settings *models.RoomSettings) (*models.Room, uuid.UUID, error)
	joinRoom    func(code, name string) (*models.Room, uuid.UUID, error)
	submitReady func(code string, token uuid.UUID, ready bool) (*models.Room, error)
	startDraft  func(code string) (*models.Room, error)
	submitPick  func(code string, token uuid.UUID, cardID string) (*models.Room, error)
	remaining   func(code string) (int, error)
	snapshot    func(code string, token *uuid.UUID) (*draft.Snapshot, error)
	listCards   func(filter catalog.ListFilter) ([]models.Card, error)
}

func (s *stubServices) CreateRoom(_ context.Context, mode models.RoomMode, name string, settings *models.RoomSettings) (*models.Room, uuid.UUID, error) {
	return s.createRoom(mode, name, settings)
}

func (s *stubServices) JoinRoom(_ context.Context, code, name string) (*models.Room, uuid.UUID, error) {
	return s.joinRoom(code, name)
}

func (s *stubServices) SubmitReady(_ context.Context, code string, token uuid.UUID, ready bool) (*models.Room, error) {
	return s.submitReady(code, token, ready)
}

func (s *stubServices) StartDraft(_ context.Context, code string) (*models.Room, error) {
	return s.startDraft(code)
}

func (s *stubServices) SubmitPick(_ context.Context, code string, token uuid.UUID, cardID string) (*models.Room, error) {
	return s.submitPick(code, token, cardID)
}

func (s *stubServices) RemainingTime(_ context.Context, code string) (int, error) {
	return s.remaining(code)
}

func (s *stubServices) GetSnapshot(_ context.Context, code string, token *uuid.UUID) (*draft.Snapshot, error) {
	return s.snapshot(code, token)
}

func (s *stubServices) ListCards(_ context.Context, filter catalog.ListFilter) ([]models.Card, error) {
	return s.listCards(filter)
}

func newTestServer(t *testing.T, stub *stubServices) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.md"), []byte("# Rules\n\nPick a card.\n"), 0o644))
	pages, err := content.LoadPages(dir)
	require.NoError(t, err)

	srv := httptest.NewServer(SetupRoutes(NewHandler(stub, stub, stub, pages)))
	t.Cleanup(srv.Close)
	return srv
}

func testRoom(status models.RoomStatus) *models.Room {
	return &models.Room{
		ID:          uuid.New(),
		Code:        "ABC123",
		Mode:        models.RoomModeSequential,
		Status:      status,
		CreatorName: "alice",
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", strings.NewReader(string(raw)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateRoom(t *testing.T) {
	token := uuid.New()
	stub := &stubServices{
		createRoom: func(mode models.RoomMode, name string, settings *models.RoomSettings) (*models.Room, uuid.UUID, error) {
			assert.Equal(t, models.RoomModeGrid, mode)
			assert.Equal(t, "alice", name)
			return testRoom(models.RoomStatusWaiting), token, nil
		},
	}
	srv := newTestServer(t, stub)

	resp := postJSON(t, srv.URL+"/api/rooms", map[string]string{"mode": "GRID", "name": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody[map[string]json.RawMessage](t, resp)
	var gotToken string
	require.NoError(t, json.Unmarshal(body["token"], &gotToken))
	assert.Equal(t, token.String(), gotToken)
}

func TestCreateRoomBadBody(t *testing.T) {
	srv := newTestServer(t, &stubServices{})

	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJoinRoomSeatTaken(t *testing.T) {
	stub := &stubServices{
		joinRoom: func(code, name string) (*models.Room, uuid.UUID, error) {
			return nil, uuid.Nil, rooms.ErrSeatTaken
		},
	}
	srv := newTestServer(t, stub)

	resp := postJSON(t, srv.URL+"/api/rooms/ABC123/join", map[string]string{"name": "bob"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody[errorResponse](t, resp)
	assert.Equal(t, "SEAT_TAKEN", body.Error)
}

func TestJoinRoomNotFound(t *testing.T) {
	stub := &stubServices{
		joinRoom: func(code, name string) (*models.Room, uuid.UUID, error) {
			return nil, uuid.Nil, fmt.Errorf("failed to get room by code %s: %w", code, sql.ErrNoRows)
		},
	}
	srv := newTestServer(t, stub)

	resp := postJSON(t, srv.URL+"/api/rooms/NOPE99/join", map[string]string{"name": "bob"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitPickRejectionMapping(t *testing.T) {
	cases := []struct {
		reason draft.RejectReason
		status int
	}{
		{draft.RejectAlreadyTaken, http.StatusConflict},
		{draft.RejectRoundLocked, http.StatusConflict},
		{draft.RejectDeadlinePast, http.StatusConflict},
		{draft.RejectWrongTurn, http.StatusConflict},
		{draft.RejectLegendaryHeld, http.StatusConflict},
		{draft.RejectNotDrafting, http.StatusConflict},
		{draft.RejectSpectator, http.StatusForbidden},
		{draft.RejectNotOffered, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(string(tc.reason), func(t *testing.T) {
			stub := &stubServices{
				submitPick: func(code string, token uuid.UUID, cardID string) (*models.Room, error) {
					return nil, &draft.PickRejectedError{Reason: tc.reason}
				},
			}
			srv := newTestServer(t, stub)

			resp := postJSON(t, srv.URL+"/api/rooms/ABC123/pick", map[string]string{
				"token":   uuid.NewString(),
				"card_id": "ember-whelp",
			})
			require.Equal(t, tc.status, resp.StatusCode)
			body := decodeBody[errorResponse](t, resp)
			assert.Equal(t, string(tc.reason), body.Error)
		})
	}
}

func TestSubmitPickBadToken(t *testing.T) {
	srv := newTestServer(t, &stubServices{})

	resp := postJSON(t, srv.URL+"/api/rooms/ABC123/pick", map[string]string{
		"token":   "not-a-uuid",
		"card_id": "ember-whelp",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartDraftExhaustedCatalog(t *testing.T) {
	stub := &stubServices{
		startDraft: func(code string) (*models.Room, error) {
			return nil, fmt.Errorf("failed to generate offers: %w", &generator.ExhaustedError{
				Mode:     models.RoomModeSequential,
				Round:    4,
				Category: "cost-4",
				Need:     8,
				Have:     3,
			})
		},
	}
	srv := newTestServer(t, stub)

	resp := postJSON(t, srv.URL+"/api/rooms/ABC123/start", map[string]string{})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody[errorResponse](t, resp)
	assert.Equal(t, "CATALOG_EXHAUSTED", body.Error)
}

func TestRemainingTime(t *testing.T) {
	stub := &stubServices{
		remaining: func(code string) (int, error) { return 7, nil },
	}
	srv := newTestServer(t, stub)

	resp, err := http.Get(srv.URL + "/api/rooms/ABC123/time")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]int](t, resp)
	assert.Equal(t, 7, body["remaining_sec"])
}

func TestGetStateResolvesToken(t *testing.T) {
	token := uuid.New()
	stub := &stubServices{
		snapshot: func(code string, got *uuid.UUID) (*draft.Snapshot, error) {
			require.NotNil(t, got)
			assert.Equal(t, token, *got)
			return &draft.Snapshot{Room: testRoom(models.RoomStatusDrafting), Role: models.RoleCreator}, nil
		},
	}
	srv := newTestServer(t, stub)

	resp, err := http.Get(srv.URL + "/api/rooms/ABC123/state?token=" + token.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExportDeckCode(t *testing.T) {
	room := testRoom(models.RoomStatusCompleted)
	stub := &stubServices{
		snapshot: func(code string, token *uuid.UUID) (*draft.Snapshot, error) {
			return &draft.Snapshot{
				Room: room,
				Role: models.RoleSpectator,
				Decks: map[models.Side][]models.DeckEntry{
					models.SideCreator: {
						{Seq: 2, CardID: "stone-sentinel", CreatedAt: time.Now()},
						{Seq: 1, CardID: "ember-whelp", CreatedAt: time.Now()},
					},
				},
			}, nil
		},
	}
	srv := newTestServer(t, stub)

	resp, err := http.Get(srv.URL + "/api/rooms/ABC123/deck/CREATOR/code")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	cardIDs, err := deckcode.Decode(body["deck_code"])
	require.NoError(t, err)
	assert.Equal(t, []string{"ember-whelp", "stone-sentinel"}, cardIDs)
}

func TestExportDeckCodeBeforeCompletion(t *testing.T) {
	stub := &stubServices{
		snapshot: func(code string, token *uuid.UUID) (*draft.Snapshot, error) {
			return &draft.Snapshot{Room: testRoom(models.RoomStatusDrafting)}, nil
		},
	}
	srv := newTestServer(t, stub)

	resp, err := http.Get(srv.URL + "/api/rooms/ABC123/deck/CREATOR/code")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestExportDeckCodeBadSide(t *testing.T) {
	srv := newTestServer(t, &stubServices{})

	resp, err := http.Get(srv.URL + "/api/rooms/ABC123/deck/SHARED/code")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListCardsFilters(t *testing.T) {
	stub := &stubServices{
		listCards: func(filter catalog.ListFilter) ([]models.Card, error) {
			require.NotNil(t, filter.Cost)
			assert.Equal(t, 3, *filter.Cost)
			require.NotNil(t, filter.Legendary)
			assert.False(t, *filter.Legendary)
			assert.Nil(t, filter.Spell)
			assert.Equal(t, "ember", filter.Query)
			return []models.Card{{ID: "ember-whelp", Name: "Ember Whelp", Cost: 3}}, nil
		},
	}
	srv := newTestServer(t, stub)

	resp, err := http.Get(srv.URL + "/api/cards?cost=3&legendary=false&q=ember")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string][]models.Card](t, resp)
	require.Len(t, body["cards"], 1)
	assert.Equal(t, "ember-whelp", body["cards"][0].ID)
}

func TestListCardsBadCost(t *testing.T) {
	srv := newTestServer(t, &stubServices{})

	resp, err := http.Get(srv.URL + "/api/cards?cost=banana")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetPage(t *testing.T) {
	srv := newTestServer(t, &stubServices{})

	resp, err := http.Get(srv.URL + "/pages/rules")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	missing, err := http.Get(srv.URL + "/pages/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
