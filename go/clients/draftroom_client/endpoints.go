package draftroom_client

const (
	// API Endpoints
	RoomsEndpoint = "/api/rooms"
	CardsEndpoint = "/api/cards"

	// Room sub-resources, formatted with the room code
	JoinEndpoint  = "/api/rooms/%s/join"
	ReadyEndpoint = "/api/rooms/%s/ready"
	StartEndpoint = "/api/rooms/%s/start"
	PickEndpoint  = "/api/rooms/%s/pick"
	TimeEndpoint  = "/api/rooms/%s/time"
	StateEndpoint = "/api/rooms/%s/state"
	DeckEndpoint  = "/api/rooms/%s/deck/%s/code"
)
