// Command migrate applies the database schema. It is idempotent; run it
// before first starting the curator or the holder.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"telegram-channel-moderation/internal/config"
	pg "telegram-channel-moderation/internal/infra/db/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS bots (
    id                 BIGINT PRIMARY KEY,
    token              TEXT        NOT NULL,
    owner_id           BIGINT      NOT NULL,
    moderation_chat_id BIGINT      NOT NULL,
    target_channel     TEXT        NOT NULL,
    active             BOOLEAN     NOT NULL DEFAULT TRUE,
    settings           JSONB       NOT NULL DEFAULT '{}',
    last_publish_at    TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS items (
    id                    BIGINT      NOT NULL,
    origin_chat_id        BIGINT      NOT NULL,
    owner_id              BIGINT      NOT NULL,
    bot_id                BIGINT      NOT NULL,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    is_approved           BOOLEAN     NOT NULL DEFAULT FALSE,
    is_rejected           BOOLEAN     NOT NULL DEFAULT FALSE,
    is_published          BOOLEAN     NOT NULL DEFAULT FALSE,
    moderation_message_id BIGINT      NOT NULL DEFAULT 0,
    PRIMARY KEY (id, origin_chat_id)
);
CREATE INDEX IF NOT EXISTS items_publish_queue
    ON items (bot_id, created_at) WHERE is_approved AND NOT is_published;
CREATE INDEX IF NOT EXISTS items_pending
    ON items (bot_id, created_at) WHERE NOT is_approved AND NOT is_rejected AND NOT is_published;

CREATE TABLE IF NOT EXISTS votes (
    voter_id       BIGINT      NOT NULL,
    item_id        BIGINT      NOT NULL,
    origin_chat_id BIGINT      NOT NULL,
    approve        BOOLEAN     NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (voter_id, item_id, origin_chat_id)
);
CREATE INDEX IF NOT EXISTS votes_by_item ON votes (item_id, origin_chat_id);

CREATE TABLE IF NOT EXISTS stages (
    bot_id     BIGINT      NOT NULL,
    key        TEXT        NOT NULL,
    step       TEXT        NOT NULL,
    meta       JSONB       NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (bot_id, key)
);

CREATE TABLE IF NOT EXISTS bans (
    bot_id       BIGINT      NOT NULL,
    user_id      BIGINT      NOT NULL,
    display_name TEXT        NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (bot_id, user_id)
);
`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, false, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	fmt.Println("schema is up to date")
}
