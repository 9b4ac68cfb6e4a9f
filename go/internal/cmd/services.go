package main

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/kestrelcg/draftroom/go/internal/catalog"
	"github.com/kestrelcg/draftroom/go/internal/content"
	"github.com/kestrelcg/draftroom/go/internal/dbconfig"
	"github.com/kestrelcg/draftroom/go/internal/draft"
	"github.com/kestrelcg/draftroom/go/internal/draft/gateway"
	"github.com/kestrelcg/draftroom/go/internal/draft/orchestrator"
	"github.com/kestrelcg/draftroom/go/internal/draft/outbox"
	"github.com/kestrelcg/draftroom/go/internal/httpapi"
	"github.com/kestrelcg/draftroom/go/internal/rooms"
)

type Services struct {
	Rooms        *rooms.App
	Catalog      *catalog.App
	Draft        *draft.App
	API          http.Handler
	Gateway      *gateway.Service
	Listener     *outbox.Listener
	Orchestrator *orchestrator.Orchestrator
}

func setupServices(database *sql.DB, dbConfig dbconfig.Config, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → HTTP/gateway layer

	// Catalog
	catalogRepo := catalog.NewRepository(database)
	catalogApp := catalog.NewApp(catalogRepo)

	// Rooms
	roomRepo := rooms.NewRepository(database)
	roomApp := rooms.NewApp(roomRepo)

	// Draft
	draftRepo := draft.NewRepository(database)
	draftApp := draft.NewApp(draftRepo, roomApp, catalogApp, draft.NewRandomStrategy(), config.Timing, clockwork.NewRealClock())

	// Orchestrator drives deadline resolution; the draft app wakes it on
	// every write that moves a deadline.
	orch := orchestrator.NewOrchestrator(draftApp, 50)
	draftApp.SetWaker(orch)

	// Outbox listener publishes committed events to JetStream.
	natsURL := getEnv("NATS_URL", config.Nats.URL)
	publisherCfg := outbox.DefaultJetStreamConfig()
	if natsURL != "" {
		publisherCfg.URL = natsURL
	}
	publisher, err := outbox.NewJetStreamPublisher(publisherCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	listenerCfg := outbox.DefaultListenerConfig()
	listenerCfg.DatabaseURL = dbConfig.DSN()
	listener, err := outbox.NewListener(outbox.NewRepository(database), publisher, listenerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox listener: %w", err)
	}

	// Gateway fans JetStream events out to WebSocket subscribers.
	gatewayCfg := gateway.DefaultConfig()
	if natsURL != "" {
		gatewayCfg.JetStreamConfig.URL = natsURL
	}
	gatewayService, err := gateway.NewService(gatewayCfg, roomApp)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	// Content pages
	pages, err := content.LoadPages(config.Content.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load content pages: %w", err)
	}

	api := httpapi.SetupRoutes(httpapi.NewHandler(roomApp, draftApp, catalogApp, pages))

	return &Services{
		Rooms:        roomApp,
		Catalog:      catalogApp,
		Draft:        draftApp,
		API:          api,
		Gateway:      gatewayService,
		Listener:     listener,
		Orchestrator: orch,
	}, nil
}
