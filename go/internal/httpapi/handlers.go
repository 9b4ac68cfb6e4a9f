package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kestrelcg/draftroom/go/internal/catalog"
	"github.com/kestrelcg/draftroom/go/internal/content"
	"github.com/kestrelcg/draftroom/go/internal/deckcode"
	"github.com/kestrelcg/draftroom/go/internal/draft"
	"github.com/kestrelcg/draftroom/go/internal/draft/generator"
	"github.com/kestrelcg/draftroom/go/internal/models"
	"github.com/kestrelcg/draftroom/go/internal/rooms"
)

// RoomService is the room lifecycle surface the API needs.
type RoomService interface {
	CreateRoom(ctx context.Context, mode models.RoomMode, creatorName string, settings *models.RoomSettings) (*models.Room, uuid.UUID, error)
	JoinRoom(ctx context.Context, code, joinerName string) (*models.Room, uuid.UUID, error)
}

// DraftService is the drafting surface the API needs.
type DraftService interface {
	SubmitReady(ctx context.Context, code string, token uuid.UUID, ready bool) (*models.Room, error)
	StartDraft(ctx context.Context, code string) (*models.Room, error)
	SubmitPick(ctx context.Context, code string, token uuid.UUID, cardID string) (*models.Room, error)
	RemainingTime(ctx context.Context, code string) (int, error)
	GetSnapshot(ctx context.Context, code string, token *uuid.UUID) (*draft.Snapshot, error)
}

// CardService is the catalog surface the API needs.
type CardService interface {
	ListCards(ctx context.Context, filter catalog.ListFilter) ([]models.Card, error)
}

// Handler serves the REST API for rooms, drafting, and the card catalog.
type Handler struct {
	rooms   RoomService
	draft   DraftService
	catalog CardService
	pages   *content.Store
}

// NewHandler creates an API handler over the application services.
func NewHandler(roomsApp RoomService, draftApp DraftService, catalogApp CardService, pages *content.Store) *Handler {
	return &Handler{
		rooms:   roomsApp,
		draft:   draftApp,
		catalog: catalogApp,
		pages:   pages,
	}
}

type createRoomRequest struct {
	Mode     string               `json:"mode"`
	Name     string               `json:"name"`
	Settings *models.RoomSettings `json:"settings,omitempty"`
}

type roomWithToken struct {
	Room  *models.Room `json:"room"`
	Token string       `json:"token"`
}

// CreateRoom handles POST /api/rooms.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	room, token, err := h.rooms.CreateRoom(r.Context(), models.RoomMode(req.Mode), req.Name, req.Settings)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, roomWithToken{Room: room, Token: token.String()})
}

type joinRoomRequest struct {
	Name string `json:"name"`
}

// JoinRoom handles POST /api/rooms/{code}/join.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	room, token, err := h.rooms.JoinRoom(r.Context(), chi.URLParam(r, "code"), req.Name)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, roomWithToken{Room: room, Token: token.String()})
}

type readyRequest struct {
	Token string `json:"token"`
	Ready *bool  `json:"ready,omitempty"`
}

// SetReady handles POST /api/rooms/{code}/ready.
func (h *Handler) SetReady(w http.ResponseWriter, r *http.Request) {
	var req readyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	token, err := uuid.Parse(req.Token)
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid token")
		return
	}
	ready := true
	if req.Ready != nil {
		ready = *req.Ready
	}

	room, err := h.draft.SubmitReady(r.Context(), chi.URLParam(r, "code"), token, ready)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

// StartDraft handles POST /api/rooms/{code}/start. Starting is normally
// implicit in the second ready, but clients may retry explicitly after a
// catalog exhaustion failure.
func (h *Handler) StartDraft(w http.ResponseWriter, r *http.Request) {
	room, err := h.draft.StartDraft(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

type pickRequest struct {
	Token  string `json:"token"`
	CardID string `json:"card_id"`
}

// SubmitPick handles POST /api/rooms/{code}/pick.
func (h *Handler) SubmitPick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	token, err := uuid.Parse(req.Token)
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid token")
		return
	}

	room, err := h.draft.SubmitPick(r.Context(), chi.URLParam(r, "code"), token, req.CardID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

// RemainingTime handles GET /api/rooms/{code}/time.
func (h *Handler) RemainingTime(w http.ResponseWriter, r *http.Request) {
	remaining, err := h.draft.RemainingTime(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"remaining_sec": remaining})
}

// GetState handles GET /api/rooms/{code}/state. The optional token query
// parameter resolves the caller's role; without it the snapshot is the
// spectator view.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	var token *uuid.UUID
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		parsed, err := uuid.Parse(tokenStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid token")
			return
		}
		token = &parsed
	}

	snapshot, err := h.draft.GetSnapshot(r.Context(), chi.URLParam(r, "code"), token)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// ExportDeckCode handles GET /api/rooms/{code}/deck/{side}/code.
func (h *Handler) ExportDeckCode(w http.ResponseWriter, r *http.Request) {
	side := models.Side(chi.URLParam(r, "side"))
	if side != models.SideCreator && side != models.SideJoiner {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "side must be CREATOR or JOINER")
		return
	}

	snapshot, err := h.draft.GetSnapshot(r.Context(), chi.URLParam(r, "code"), nil)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if snapshot.Room.Status != models.RoomStatusCompleted {
		respondError(w, http.StatusConflict, "DRAFT_NOT_COMPLETED", "deck codes are available once the draft completes")
		return
	}

	entries := snapshot.Decks[side]
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	cardIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		cardIDs = append(cardIDs, e.CardID)
	}

	code, err := deckcode.Encode(cardIDs)
	if err != nil {
		respondError(w, http.StatusConflict, "EMPTY_DECK", "no cards banked for this side")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deck_code": code})
}

// ListCards handles GET /api/cards.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	var filter catalog.ListFilter

	if costStr := r.URL.Query().Get("cost"); costStr != "" {
		cost, err := strconv.Atoi(costStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "cost must be an integer")
			return
		}
		filter.Cost = &cost
	}
	if legStr := r.URL.Query().Get("legendary"); legStr != "" {
		legendary, err := strconv.ParseBool(legStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "legendary must be a boolean")
			return
		}
		filter.Legendary = &legendary
	}
	if spellStr := r.URL.Query().Get("spell"); spellStr != "" {
		spell, err := strconv.ParseBool(spellStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "spell must be a boolean")
			return
		}
		filter.Spell = &spell
	}
	filter.Query = r.URL.Query().Get("q")

	cards, err := h.catalog.ListCards(r.Context(), filter)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

// GetPage handles GET /pages/{slug}.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pages.GetPage(chi.URLParam(r, "slug"))
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "page not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(page.HTML))
}

// Healthz handles GET /healthz.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, detail string) {
	respondJSON(w, status, errorResponse{Error: code, Detail: detail})
}

// respondAppError maps service errors onto HTTP statuses and stable
// machine readable codes.
func respondAppError(w http.ResponseWriter, err error) {
	var pickErr *draft.PickRejectedError
	if errors.As(err, &pickErr) {
		status := http.StatusConflict
		switch pickErr.Reason {
		case draft.RejectSpectator:
			status = http.StatusForbidden
		case draft.RejectNotOffered:
			status = http.StatusBadRequest
		}
		respondError(w, status, string(pickErr.Reason), pickErr.Detail)
		return
	}

	var exhausted *generator.ExhaustedError
	if errors.As(err, &exhausted) {
		// The catalog may be mid-update; the client can retry the start.
		respondError(w, http.StatusConflict, "CATALOG_EXHAUSTED", exhausted.Error())
		return
	}

	if errors.Is(err, rooms.ErrSeatTaken) {
		respondError(w, http.StatusConflict, "SEAT_TAKEN", "the joiner seat is already filled")
		return
	}
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "room not found")
		return
	}

	log.Error().Err(err).Msg("request failed")
	respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
}
