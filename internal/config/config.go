// internal/config/config.go
//
// Server configuration. Every key is a command-line flag and may also be set
// through the environment as DUEL_<KEY> (dashes become underscores). A .env
// file in the working directory is loaded first, when present.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/robalobadob/wordduel/internal/game"
	"github.com/robalobadob/wordduel/internal/session"
)

const envPrefix = "DUEL"

// Config is the resolved server configuration.
type Config struct {
	Port         int
	LogLevel     string
	ClientOrigin string
	PublicURL    string // base for invite links, e.g. https://duel.example.com

	DBDriver string
	DBDSN    string

	JWTSecret string
	JWTTTL    time.Duration

	WordsURL         string
	WordsAnswersFile string
	WordsAllowedFile string

	MailAPIURL string
	MailAPIKey string
	MailFrom   string

	TurnTimeout      time.Duration
	TimeoutPolicy    string
	BotWait          time.Duration
	BotThink         time.Duration
	RematchWindow    time.Duration
	PendingRetention time.Duration
	MaxRows          int
	HandSize         int
	IdleTurns        int
	StrictGuesses    bool
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch session.TimeoutPolicy(c.TimeoutPolicy) {
	case session.PolicyPass, session.PolicyForfeit:
	default:
		return fmt.Errorf("invalid --timeout-policy %q (want pass or forfeit)", c.TimeoutPolicy)
	}
	if c.JWTSecret == "" {
		return errors.New("--jwt-secret must not be empty")
	}
	if c.MaxRows < 1 || c.HandSize < 1 || c.IdleTurns < 1 {
		return errors.New("--max-rows, --hand-size and --idle-turns must be positive")
	}
	for name, d := range map[string]time.Duration{
		"turn-timeout":      c.TurnTimeout,
		"bot-wait":          c.BotWait,
		"rematch-window":    c.RematchWindow,
		"pending-retention": c.PendingRetention,
	} {
		if d <= 0 {
			return fmt.Errorf("--%s must be positive", name)
		}
	}
	return nil
}

// Session returns the session tuning carried by c.
func (c *Config) Session() session.Config {
	return session.Config{
		TurnTimeout:   c.TurnTimeout,
		TimeoutPolicy: session.TimeoutPolicy(c.TimeoutPolicy),
		RematchWindow: c.RematchWindow,
		MaxRows:       c.MaxRows,
		HandSize:      c.HandSize,
		BotThink:      c.BotThink,
		StrictGuesses: c.StrictGuesses,
		IdleTurns:     c.IdleTurns,
	}
}

// RegisterFlags defines every key on fs, writing into cfg.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.IntVarP(&cfg.Port, "port", "p", 5175, "port to listen on (env: DUEL_PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "zerolog level (env: DUEL_LOG_LEVEL)")
	fs.StringVar(&cfg.ClientOrigin, "client-origin", "http://localhost:5173", "allowed CORS origin (env: DUEL_CLIENT_ORIGIN)")
	fs.StringVar(&cfg.PublicURL, "public-url", "http://localhost:5173", "base URL used in invite links (env: DUEL_PUBLIC_URL)")

	fs.StringVar(&cfg.DBDriver, "db-driver", "sqlite3", "database driver: sqlite3 or postgres (env: DUEL_DB_DRIVER)")
	fs.StringVar(&cfg.DBDSN, "db-dsn", "data/duel.db", "sqlite path or postgres connection string (env: DUEL_DB_DSN)")

	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "dev_secret_change_me", "HS256 signing secret (env: DUEL_JWT_SECRET)")
	fs.DurationVar(&cfg.JWTTTL, "jwt-ttl", 14*24*time.Hour, "lifetime of issued tokens (env: DUEL_JWT_TTL)")

	fs.StringVar(&cfg.WordsURL, "words-url", "", "remote word list, one word per line (env: DUEL_WORDS_URL)")
	fs.StringVar(&cfg.WordsAnswersFile, "words-answers-file", "", "answers file (env: DUEL_WORDS_ANSWERS_FILE)")
	fs.StringVar(&cfg.WordsAllowedFile, "words-allowed-file", "", "allowed guesses file (env: DUEL_WORDS_ALLOWED_FILE)")

	fs.StringVar(&cfg.MailAPIURL, "mail-api-url", "", "mail API endpoint; empty logs codes instead (env: DUEL_MAIL_API_URL)")
	fs.StringVar(&cfg.MailAPIKey, "mail-api-key", "", "mail API bearer key (env: DUEL_MAIL_API_KEY)")
	fs.StringVar(&cfg.MailFrom, "mail-from", "noreply@wordduel.local", "sender address (env: DUEL_MAIL_FROM)")

	fs.DurationVar(&cfg.TurnTimeout, "turn-timeout", session.DefaultTurnTimeout, "time allowed per turn (env: DUEL_TURN_TIMEOUT)")
	fs.StringVar(&cfg.TimeoutPolicy, "timeout-policy", string(session.PolicyPass), "what an expired turn does: pass or forfeit (env: DUEL_TIMEOUT_POLICY)")
	fs.DurationVar(&cfg.BotWait, "bot-wait", 20*time.Second, "queue wait before a bot is seated (env: DUEL_BOT_WAIT)")
	fs.DurationVar(&cfg.BotThink, "bot-think", session.DefaultBotThink, "bot delay before acting (env: DUEL_BOT_THINK)")
	fs.DurationVar(&cfg.RematchWindow, "rematch-window", session.DefaultRematchWindow, "time to agree on a rematch (env: DUEL_REMATCH_WINDOW)")
	fs.DurationVar(&cfg.PendingRetention, "pending-retention", 10*time.Minute, "how long undelivered results are kept (env: DUEL_PENDING_RETENTION)")
	fs.IntVar(&cfg.MaxRows, "max-rows", game.DefaultRows, "rows on the shared board before a match is drawn (env: DUEL_MAX_ROWS)")
	fs.IntVar(&cfg.HandSize, "hand-size", game.DefaultHandSize, "cards dealt to each player (env: DUEL_HAND_SIZE)")
	fs.IntVar(&cfg.IdleTurns, "idle-turns", session.DefaultIdleTurns, "consecutive timed-out turns before a match is drawn (env: DUEL_IDLE_TURNS)")
	fs.BoolVar(&cfg.StrictGuesses, "strict-guesses", false, "reject guesses outside the word list (env: DUEL_STRICT_GUESSES)")
}

// BindEnv loads .env, then lets DUEL_* variables fill any flag not set on
// the command line.
func BindEnv(fs *pflag.FlagSet) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// NewCommand builds the root command. run receives the validated config.
func NewCommand(version string, run func(cmd *cobra.Command, cfg *Config) error) *cobra.Command {
	cfg := &Config{}

	cmd := &cobra.Command{
		Use:     "wordduel",
		Short:   "Two-player word duel server with cards, matchmaking and bots.",
		Args:    cobra.ExactArgs(0),
		Version: version,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			BindEnv(cmd.Flags())
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, cfg)
		},
	}

	RegisterFlags(cmd.Flags(), cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wordduel v{{.Version}}\n")
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
