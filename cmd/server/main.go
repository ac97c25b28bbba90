package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	fakeclientrepo "github.com/jrsteele09/go-authz-server/clients/fakerepo"
	"github.com/jrsteele09/go-authz-server/internal/config"
	"github.com/jrsteele09/go-authz-server/server"
	"github.com/jrsteele09/go-authz-server/sessions"
	"github.com/jrsteele09/go-authz-server/storage/redisstore"
	"github.com/jrsteele09/go-authz-server/storage/sqlite"
	tokenfakerepo "github.com/jrsteele09/go-authz-server/token/repofake"
	fakeuserrepo "github.com/jrsteele09/go-authz-server/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, c)
	if err != nil {
		return err
	}
	defer st.close()

	opts := []server.Option{}
	if st.health != nil {
		opts = append(opts, server.WithHealthCheck(st.health))
	}
	srv, err := server.New(c, st.repos, opts...)
	if err != nil {
		return err
	}
	defer srv.Close()

	if st.sweep != nil {
		go sweepLoop(ctx, st.sweep)
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

// storage is the set of repositories selected by AUTHZ_STORE plus the hooks
// the process needs around them.
type storage struct {
	repos  server.Repos
	health server.Pinger
	sweep  func(ctx context.Context, now time.Time)
	close  func()
}

func openStorage(ctx context.Context, c config.Config) (*storage, error) {
	switch c.GetStore() {
	case config.StoreSQLite:
		db, err := sqlite.Open(c.GetSQLitePath())
		if err != nil {
			return nil, err
		}
		// Sessions stay in memory; a restart signs everyone out.
		sessionRepo := sessions.NewInMemoryRepo()
		return &storage{
			repos: server.Repos{
				Clients:  db.Clients(),
				Users:    db.Users(),
				Codes:    db.Codes(),
				Tokens:   db.Tokens(),
				Sessions: sessionRepo,
			},
			health: db,
			sweep: func(ctx context.Context, now time.Time) {
				sessionRepo.Sweep(now)
				if n, err := db.Codes().Sweep(ctx, now); err != nil {
					log.Err(err).Msg("Failed to sweep expired codes")
				} else if n > 0 {
					log.Debug().Int64("removed", n).Msg("Swept expired codes")
				}
			},
			close: func() { _ = db.Close() },
		}, nil

	case config.StoreRedis:
		rdb, err := redisstore.New(ctx, redisstore.Config{
			Addr:      c.GetRedisAddr(),
			Password:  c.GetRedisPassword(),
			KeyPrefix: c.GetRedisKeyPrefix(),
		})
		if err != nil {
			return nil, err
		}
		// Redis expires codes and sessions itself
		return &storage{
			repos: server.Repos{
				Clients:  rdb.Clients(),
				Users:    rdb.Users(),
				Codes:    rdb.Codes(),
				Tokens:   rdb.Tokens(),
				Sessions: rdb.Sessions(),
			},
			health: rdb,
			close:  func() { _ = rdb.Close() },
		}, nil

	default:
		codes := tokenfakerepo.NewFakeCodeRepo()
		sessionRepo := sessions.NewInMemoryRepo()
		log.Warn().Msg("Using in-memory storage; all data is lost on restart")
		return &storage{
			repos: server.Repos{
				Clients:  fakeclientrepo.NewFakeClientRepo(),
				Users:    fakeuserrepo.NewFakeUserRepo(),
				Codes:    codes,
				Tokens:   tokenfakerepo.NewFakeBearerRepo(),
				Sessions: sessionRepo,
			},
			sweep: func(_ context.Context, now time.Time) {
				sessionRepo.Sweep(now)
				codes.Sweep(now)
			},
			close: func() {},
		}, nil
	}
}

func sweepLoop(ctx context.Context, sweep func(context.Context, time.Time)) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sweep(ctx, now)
		}
	}
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
