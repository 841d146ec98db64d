package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBUrl string

	TurnTimeout     time.Duration // per-turn roll deadline (duel)
	BotThinkMin     time.Duration // bot auto-roll delay window
	BotThinkMax     time.Duration
	WaitFill        time.Duration // under-populated wait before bot fill
	DrawLockAfter   time.Duration // scheduled lock window for a fresh draw room
	FinalizeTimeout time.Duration // cap on the finalize critical section

	DrawMultiplier int64 // draw prize = entry_fee * multiplier
	DuelDamagePct  int64 // per-round transfer = max(1, fee*pct/100)
}

func Load() Config {
	return Config{
		DBUrl: os.Getenv("POSTGRES_URL"),

		TurnTimeout:     secs("TURN_TIMEOUT_SEC", 20),
		BotThinkMin:     secs("BOT_THINK_MIN_SEC", 2),
		BotThinkMax:     secs("BOT_THINK_MAX_SEC", 8),
		WaitFill:        secs("WAIT_FILL_SEC", 30),
		DrawLockAfter:   secs("DRAW_LOCK_SEC", 120),
		FinalizeTimeout: secs("FINALIZE_LOCK_TIMEOUT_SEC", 10),

		DrawMultiplier: num("DRAW_MULTIPLIER", 10),
		DuelDamagePct:  num("DUEL_DAMAGE_PCT", 20),
	}
}

func secs(key string, def int64) time.Duration {
	return time.Duration(num(key, def)) * time.Second
}

func num(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
