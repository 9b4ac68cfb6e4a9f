package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kestrelcg/draftroom/go/internal/dbconfig"
)

// Card mirrors the JSON snapshot structure
type Card struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Cost        int    `json:"cost"`
	Image       string `json:"image,omitempty"`
	IsLegendary bool   `json:"is_legendary"`
	IsSpell     bool   `json:"is_spell"`
}

func main() {
	// 1) Load the JSON snapshot
	path := "go/internal/assets/cards.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert and count
	var (
		total    = len(cards)
		upserted int
		errs     int
	)

	for _, c := range cards {
		if c.Cost < 1 || c.Cost > 12 {
			fmt.Fprintf(os.Stderr, "card %s has cost %d outside 1..12, skipping\n", c.ID, c.Cost)
			errs++
			continue
		}
		_, err := pool.Exec(context.Background(), `
            INSERT INTO cards (
              id, name, cost, image, is_legendary, is_spell
            ) VALUES (
              $1,$2,$3,$4,$5,$6
            )
            ON CONFLICT (id) DO UPDATE SET
              name = EXCLUDED.name,
              cost = EXCLUDED.cost,
              image = EXCLUDED.image,
              is_legendary = EXCLUDED.is_legendary,
              is_spell = EXCLUDED.is_spell
        `,
			c.ID, c.Name, c.Cost, c.Image, c.IsLegendary, c.IsSpell,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error upserting card %s: %v\n", c.ID, err)
			errs++
			continue
		}
		upserted++
	}

	// 4) Print summary
	fmt.Printf(
		"Cards seed complete: %d total, %d upserted, %d errors\n",
		total, upserted, errs,
	)
}
