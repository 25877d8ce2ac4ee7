package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mrblmoore/hannibal-ai/internal/arena"
	"github.com/mrblmoore/hannibal-ai/internal/auth"
	"github.com/mrblmoore/hannibal-ai/internal/command"
	"github.com/mrblmoore/hannibal-ai/internal/config"
	"github.com/mrblmoore/hannibal-ai/internal/fallback"
	"github.com/mrblmoore/hannibal-ai/internal/handler"
	"github.com/mrblmoore/hannibal-ai/internal/inference"
	"github.com/mrblmoore/hannibal-ai/internal/logger"
	"github.com/mrblmoore/hannibal-ai/internal/loop"
	"github.com/mrblmoore/hannibal-ai/internal/memory"
	"github.com/mrblmoore/hannibal-ai/internal/repository"
	redisrepo "github.com/mrblmoore/hannibal-ai/internal/repository/redis"
)

func main() {
	scenarioPath := flag.String("scenario", "scenarios/cannae.yaml", "arena scenario file")
	step := flag.Float64("step", 0.1, "simulated seconds per step")
	speed := flag.Float64("speed", 1, "simulated seconds per wall-clock second")
	offline := flag.Bool("offline", false, "never call the reasoning service; fallback only")
	mintToken := flag.Bool("mint-token", false, "print a debug API token and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Init(logger.Options{})
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Dev: cfg.Debug})

	jwtMgr := auth.NewJWTManager(cfg.DebugSecret)
	if *mintToken {
		token, err := jwtMgr.WithExpiry(24*time.Hour).GenerateToken("operator", "debug")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to mint token")
		}
		fmt.Println(token)
		return
	}
	if *step <= 0 || *speed <= 0 {
		log.Fatal().Float64("step", *step).Float64("speed", *speed).Msg("step and speed must be positive")
	}

	sc, err := arena.LoadScenario(*scenarioPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *scenarioPath).Msg("Failed to load scenario")
	}
	field := arena.New(sc)
	log.Info().Str("scenario", sc.Name).Str("controlled", string(sc.Controlled)).Msg("Scenario loaded")

	store := memory.NewStore(memory.Config{
		Min:           cfg.MemoryMin,
		Max:           cfg.MemoryMax,
		Step:          cfg.MemoryStep,
		DecayRate:     cfg.MemoryDecayRate,
		Capacity:      cfg.MemoryCapacity,
		MaxEncounters: cfg.MemoryEncounters,
	})

	// Redis is optional; without it commander memory lasts one process.
	var repo repository.CommanderRepository
	opts := []loop.Option{}
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err := redisrepo.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			cancel()
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		defer redisClient.Close()

		records, err := redisClient.LoadAll(ctx)
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("Failed to restore commander memory (non-fatal)")
		}
		store.Restore(records)
		log.Info().Int("records", len(records)).Int("held", store.Len()).Msg("Commander memory restored")

		repo = redisClient
		opts = append(opts, loop.WithSaver(redisClient))
	}

	var client loop.Decider
	if *offline {
		log.Info().Msg("Offline: decisions come from the fallback controller")
	} else {
		clientOpts := []inference.Option{inference.WithTimeout(cfg.RequestTimeout)}
		if cred := credential(cfg); cred != nil {
			clientOpts = append(clientOpts, inference.WithCredential(cred))
		}
		c := inference.NewClient(cfg.InferenceURL, clientOpts...)
		log.Info().Str("endpoint", c.Endpoint()).Str("credential", cfg.CredentialMode()).Msg("Reasoning service configured")
		client = c
	}

	hub := handler.NewHub()
	opts = append(opts, loop.WithEvents(hub))

	l, err := loop.New(loop.Config{
		Side:            sc.Controlled,
		Interval:        cfg.SampleInterval,
		Timeout:         cfg.RequestTimeout,
		BackoffFailures: cfg.BackoffFailures,
		BackoffCooldown: cfg.BackoffCooldown,
	}, field, loop.Deps{
		Client:     client,
		Memory:     store,
		Translator: command.NewTranslator(),
		Fallback:   fallback.NewController(sc.Controlled),
	}, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build decision loop")
	}
	defer l.Close()

	var srv *http.Server
	if cfg.DebugAddr != "" {
		debug := handler.NewDebugHandler(l, store, repo)
		srv = &http.Server{
			Addr:         cfg.DebugAddr,
			Handler:      handler.Routes(debug, handler.NewFeedHandler(hub, jwtMgr), jwtMgr),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.DebugAddr).Msg("Debug server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("Debug server error")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if run(field, l, *step, *speed, quit) && srv != nil {
		log.Info().Msg("Battle over; debug server stays up until interrupted")
		<-quit
	}
	log.Info().Msg("Shutting down")

	if repo != nil {
		flush(repo, store)
	}
	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Debug server shutdown error")
		}
	}
	log.Info().Msg("Stopped")
}

// run steps the arena and the loop together in real time. It reports
// whether the battle finished before a signal arrived.
func run(field *arena.Arena, l *loop.Loop, step, speed float64, quit <-chan os.Signal) bool {
	ticker := time.NewTicker(time.Duration(step / speed * float64(time.Second)))
	defer ticker.Stop()

	l.Tick(0)
	for {
		select {
		case <-quit:
			return false
		case <-ticker.C:
			field.Step(step)
			l.Tick(step)
			if l.State() == loop.StateBattleEnded {
				st := l.Status()
				log.Info().
					Float64("time", field.Time()).
					Str("commander", st.Commander).
					Strs("tactics", st.Tactics).
					Msg("Scenario finished")
				return true
			}
		}
	}
}

// credential picks the bearer source for the reasoning service:
// OAuth client credentials, then a locally signed JWT, then a static key.
func credential(cfg *config.Config) inference.Credential {
	switch cfg.CredentialMode() {
	case "oauth":
		return auth.NewOAuthCredential(cfg.OAuthTokenURL, cfg.OAuthClientID, cfg.OAuthClientSecret)
	case "jwt":
		return auth.NewSignedCredential(auth.NewJWTManager(cfg.InferenceJWT), "hannibal", "decide")
	case "static":
		return auth.StaticCredential(cfg.InferenceAPIKey)
	}
	return nil
}

// flush writes every held commander back to the repository so nothing is
// lost to a save still in flight at exit.
func flush(repo repository.CommanderRepository, store *memory.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	saved := 0
	for _, rec := range store.Records() {
		if err := repo.SaveCommander(ctx, rec); err != nil {
			log.Error().Err(err).Str("commander", rec.ID).Msg("Failed to save commander")
			continue
		}
		saved++
	}
	log.Info().Int("saved", saved).Msg("Commander memory flushed")
}
