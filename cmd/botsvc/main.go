package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	config "github.com/gebeta/wager-services/configs"
	"github.com/gebeta/wager-services/internal/roomsvc/db"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "bot"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

// Bot user IDs - sequential starting from 9000000001
var botUserIDs = []int64{
	9000000001, 9000000002, 9000000003, 9000000004, 9000000005,
	9000000006, 9000000007, 9000000008, 9000000009, 9000000010,
	9000000011, 9000000012, 9000000013, 9000000014, 9000000015,
}

// Bot names - mix of first names only and first+last names
var botNames = []string{
	"Abelo", "meron bekele", "dawit", "mulugeta", "ted",
	"yonas", "liya", "Bereket Alemu", "Eden", "Samuel Yimer",
	"rahel", "Daniel Negash", "Bethel", "Kidus Wolde", "Natan",
}

func main() {
	log.Printf("Starting Bot Service...")

	// pg connection
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	ctx := context.Background()

	floatCents := botFloat()

	// Ensure bot accounts exist
	if err := ensureBotAccounts(ctx, dbpool); err != nil {
		log.Fatalf("Failed to ensure bot accounts: %v", err)
	}
	log.Printf("Bot accounts verified/created successfully")

	// Initial wallet funding for fresh bots
	if err := topUpBotWallets(ctx, dbpool, floatCents); err != nil {
		log.Errorf("Failed to top-up bot wallets: %v", err)
	} else {
		log.Printf("Bot wallets top-up completed")
	}

	log.Printf("Bot Service setup completed successfully!")

	// Ongoing maintenance: refloat broke bots and free bots whose room
	// already finished so the supply pool never drains.
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := refloatBotWallets(ctx, dbpool, floatCents); err != nil {
			log.Errorf("Failed to refloat bot wallets: %v", err)
		}
		if err := releaseStuckBots(ctx, dbpool); err != nil {
			log.Errorf("Failed to release stuck bots: %v", err)
		}
	}
}

// botFloat reads the target wallet float in cents, default 100000 (1000.00)
func botFloat() int64 {
	if v := os.Getenv("BOT_FLOAT_CENTS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
		log.Errorf("Invalid BOT_FLOAT_CENTS value, using default")
	}
	return 100000
}

// ensureBotAccounts creates bot user accounts and supply-pool rows if
// they don't exist
func ensureBotAccounts(ctx context.Context, dbpool *pgxpool.Pool) error {
	tx, err := dbpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, userID := range botUserIDs {
		var count int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM users
			WHERE user_id = $1
		`, userID).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check if user %d exists: %w", userID, err)
		}

		if count == 0 {
			var createdUserID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO users (user_id, name, email, phone, avatar, status)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING user_id
			`, userID, botNames[i], fmt.Sprintf("%d@gebetaplay.online", userID), "",
				"", "ACTIVE").Scan(&createdUserID)
			if err != nil {
				return fmt.Errorf("failed to create bot account %d: %w", userID, err)
			}
			log.Printf("Created bot account %d (%s)", createdUserID, botNames[i])
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO bots (user_id, name, status)
			VALUES ($1, $2, 'available')
			ON CONFLICT (user_id) DO NOTHING
		`, userID, botNames[i])
		if err != nil {
			return fmt.Errorf("failed to register bot %d in pool: %w", userID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// topUpBotWallets adds the initial float to bot accounts that have no
// ledger history yet
func topUpBotWallets(ctx context.Context, dbpool *pgxpool.Pool, floatCents int64) error {
	tx, err := dbpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, botUserID := range botUserIDs {
		var count int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM balances
			WHERE user_id = $1
		`, botUserID).Scan(&count)
		if err != nil {
			log.Printf("Failed to check bot balance history for %d: %v", botUserID, err)
			continue
		}

		if count == 0 {
			tref := fmt.Sprintf("BOT-INIT-%d", botUserID)

			_, err = tx.Exec(ctx, `
				INSERT INTO balances (user_id, ttype, dr, cr, tref, status)
				VALUES ($1, 'deposit', $2, 0, $3, 'completed')
			`, botUserID, floatCents, tref)
			if err != nil {
				log.Printf("Failed to create bot initial deposit for %d: %v", botUserID, err)
				continue
			}

			log.Printf("Created initial deposit of %d for bot %d", floatCents, botUserID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// refloatBotWallets tops a bot back up to the float when losses dropped
// its balance under half of it. One deposit row per sweep at most.
func refloatBotWallets(ctx context.Context, dbpool *pgxpool.Pool, floatCents int64) error {
	tx, err := dbpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, botUserID := range botUserIDs {
		var balance int64
		err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(dr), 0) - COALESCE(SUM(cr), 0)
			FROM balances
			WHERE user_id = $1 AND status = 'completed'
		`, botUserID).Scan(&balance)
		if err != nil {
			log.Printf("Failed to read bot balance for %d: %v", botUserID, err)
			continue
		}

		if balance < floatCents/2 {
			tref := fmt.Sprintf("BOT-REFLOAT-%d-%d", botUserID, time.Now().Unix())

			_, err = tx.Exec(ctx, `
				INSERT INTO balances (user_id, ttype, dr, cr, tref, status)
				VALUES ($1, 'deposit', $2, 0, $3, 'completed')
			`, botUserID, floatCents-balance, tref)
			if err != nil {
				log.Printf("Failed to refloat bot %d: %v", botUserID, err)
				continue
			}

			log.Printf("Refloated bot %d by %d (balance was %d)", botUserID, floatCents-balance, balance)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// releaseStuckBots returns bots to the pool when the room they were
// claimed for already finished. The room engine releases bots on reset;
// this covers finished rooms nobody reset.
func releaseStuckBots(ctx context.Context, dbpool *pgxpool.Pool) error {
	tag, err := dbpool.Exec(ctx, `
		UPDATE bots
		SET status = 'available', room_id = NULL, updated_at = now()
		WHERE status = 'busy'
		  AND room_id IN (SELECT id FROM rooms WHERE state = 'finished')
	`)
	if err != nil {
		return fmt.Errorf("failed to release bots from finished rooms: %w", err)
	}
	if tag.RowsAffected() > 0 {
		log.Printf("Released %d bots from finished rooms", tag.RowsAffected())
	}
	return nil
}
