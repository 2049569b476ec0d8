// internal/config/config.go
//
// Process configuration read from the environment (after godotenv has
// loaded .env). Every field has a development default so the server starts
// with an empty environment.

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/higherpwned/server/internal/game"
)

type Config struct {
	Port     string
	LogLevel string
	DBPath   string

	ClientOrigin   string
	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	Production     bool

	PasswordsFile string
	PwnedAPIURL   string
	PwnedOffline  bool
	PwnedRetries  int

	DailySalt  string
	Rules      game.Rules
	SessionTTL time.Duration
}

// Load reads the environment.
func Load() Config {
	rules := game.DefaultRules()
	rules.RoundTime = seconds("ROUND_SECONDS", rules.RoundTime)
	rules.Bonus = seconds("BONUS_SECONDS", rules.Bonus)
	rules.Countdown = seconds("COUNTDOWN_SECONDS", rules.Countdown)
	rules.MaxRoundsStayed = envInt("MAX_ROUNDS_STAYED", rules.MaxRoundsStayed)

	return Config{
		Port:           getEnv("PORT", "5175"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DBPath:         getEnv("DB_PATH", "./data/app.db"),
		ClientOrigin:   getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		JWTSecret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiresDays: envInt("JWT_EXPIRES_DAYS", 14),
		CookieName:     getEnv("COOKIE_NAME", "pwned_token"),
		Production:     os.Getenv("NODE_ENV") == "production",
		PasswordsFile:  os.Getenv("PASSWORDS_FILE"),
		PwnedAPIURL:    getEnv("PWNED_API_URL", "https://api.pwnedpasswords.com"),
		PwnedOffline:   envBool("PWNED_OFFLINE", false),
		PwnedRetries:   envInt("PWNED_RETRIES", 2),
		DailySalt:      getEnv("DAILY_SALT", "local_dev_salt"),
		Rules:          rules,
		SessionTTL:     envDuration("SESSION_TTL", 30*time.Minute),
	}
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer env value")
		return def
	}
	return n
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-boolean env value")
		return def
	}
	return b
}

// seconds accepts a plain number of seconds (fractions allowed).
func seconds(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring invalid seconds value")
		return def
	}
	return time.Duration(f * float64(time.Second))
}

// envDuration accepts Go duration syntax ("30m") or bare seconds.
func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return seconds(k, def)
}
