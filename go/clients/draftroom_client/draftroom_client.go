package draftroom_client

import (
	"github.com/kestrelcg/draftroom/go/clients"
)

type DraftRoomClient struct {
	*clients.BaseClient
}

func NewDraftRoomClient(baseURL string) *DraftRoomClient {
	client := &DraftRoomClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader("Content-Type", "application/json")

	return client
}
