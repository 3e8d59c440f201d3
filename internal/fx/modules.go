// Package fx wires the server's components for go.uber.org/fx.
package fx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/robalobadob/wordduel/internal/config"
	"github.com/robalobadob/wordduel/internal/db"
	"github.com/robalobadob/wordduel/internal/httpserver"
	"github.com/robalobadob/wordduel/internal/logger"
	"github.com/robalobadob/wordduel/internal/mail"
	"github.com/robalobadob/wordduel/internal/matchmaking"
	"github.com/robalobadob/wordduel/internal/store"
	"github.com/robalobadob/wordduel/internal/words"
)

const (
	ShutdownTimeout = 5 * time.Second
	startupTimeout  = 15 * time.Second
)

func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(cfg.LogLevel)
}

// ProvideStore opens the database and clears bindings left by a previous
// process; no match survives a restart.
func ProvideStore(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger) (*db.Store, error) {
	st, err := db.Open(db.Options{Driver: cfg.DBDriver, DSN: cfg.DBDSN}, log)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	n, err := st.ClearBindings(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if n > 0 {
		log.Info().Int64("count", n).Msg("cleared stale match bindings")
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := st.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
	return st, nil
}

func ProvideWords(cfg *config.Config, log zerolog.Logger) (*words.Source, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	src, err := words.Init(ctx, words.Options{
		URL:         cfg.WordsURL,
		AnswersFile: cfg.WordsAnswersFile,
		AllowedFile: cfg.WordsAllowedFile,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("load word lists: %w", err)
	}
	a, g := src.Stats()
	log.Info().Str("origin", src.Origin()).Int("answers", a).Int("allowed", g).Msg("word lists loaded")
	return src, nil
}

func ProvideMail(cfg *config.Config, log zerolog.Logger) mail.Sender {
	return mail.New(mail.Options{APIURL: cfg.MailAPIURL, APIKey: cfg.MailAPIKey, From: cfg.MailFrom}, log)
}

// ProvidePending runs the ledger's reaper for the life of the app.
func ProvidePending(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger) *store.Pending {
	p := store.NewPending(cfg.PendingRetention, log)
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go p.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return p
}

func ProvideCoordinator(
	lc fx.Lifecycle,
	cfg *config.Config,
	st *db.Store,
	pending *store.Pending,
	src *words.Source,
	log zerolog.Logger,
) *matchmaking.Coordinator {
	c := matchmaking.New(matchmaking.Options{
		Config:  matchmaking.Config{BotWait: cfg.BotWait, Session: cfg.Session()},
		Matches: store.NewMatches(),
		Pending: pending,
		Words:   src,
		Chips:   st,
		Book:    st,
		Logger:  log,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			c.Close()
			return nil
		},
	})
	return c
}

func ProvideServer(
	cfg *config.Config,
	st *db.Store,
	coord *matchmaking.Coordinator,
	src *words.Source,
	sender mail.Sender,
	log zerolog.Logger,
) *httpserver.Server {
	return httpserver.New(httpserver.Options{
		Config:      cfg,
		Store:       st,
		Coordinator: coord,
		Words:       src,
		Mail:        sender,
		Logger:      log,
	})
}

// Module provides every component; the caller supplies *config.Config.
var Module = fx.Options(
	fx.Provide(ProvideLogger),
	fx.Provide(ProvideStore),
	fx.Provide(ProvideWords),
	fx.Provide(ProvideMail),
	fx.Provide(ProvidePending),
	fx.Provide(ProvideCoordinator),
	fx.Provide(ProvideServer),
)

// RunServer binds the HTTP listener to the app lifecycle.
func RunServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, srv *httpserver.Server, log zerolog.Logger) {
	hs := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info().Str("addr", hs.Addr).Msg("server starting")
				if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("server failed")
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			defer cancel()
			if err := hs.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			log.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
