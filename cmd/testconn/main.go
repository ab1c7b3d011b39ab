// Command testconn checks connectivity to the configured backing services.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/proflinker/api/internal/config"
	"github.com/proflinker/api/internal/database"
	"github.com/proflinker/api/internal/eventbus"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.Load()
	failed := false

	fmt.Println("Postgres:", redact(cfg.DatabaseURL))
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Printf("  error: %v\n", err)
		failed = true
	} else {
		var result int
		if err := db.Pool().QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
			fmt.Printf("  query error: %v\n", err)
			failed = true
		} else {
			fmt.Println("  ok")
		}
		db.Close()
	}

	if cfg.RedisURL != "" {
		fmt.Println("Redis:", redact(cfg.RedisURL))
		rdb, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			fmt.Printf("  error: %v\n", err)
			failed = true
		} else {
			fmt.Println("  ok")
			rdb.Close()
		}
	}

	if cfg.NATSURL != "" {
		fmt.Println("NATS:", cfg.NATSURL)
		bus, err := eventbus.Connect(cfg.NATSURL, nil)
		if err != nil {
			fmt.Printf("  error: %v\n", err)
			failed = true
		} else {
			fmt.Println("  ok")
			bus.Close()
		}
	}

	if failed {
		os.Exit(1)
	}
}

// redact hides the password of a connection URL
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
