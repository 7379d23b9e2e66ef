package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/escaperoom/go/clients/escaperoom_client"
	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/mcdev12/escaperoom/go/internal/reconcile"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Simulated player: joins, heartbeats, follows push hints and solves an
// enigma every -solve-every while the game runs. With -master-password it
// instead logs in as the game master and follows the session clock.
func main() {
	_ = godotenv.Load()

	server := flag.String("server", getEnv("ESCAPEROOM_URL", "http://localhost:8080"), "server base URL")
	nickname := flag.String("nickname", "sim-player", "nickname to join with")
	tokenFile := flag.String("token-file", "", "persist the player token here (memory only when empty)")
	solveEvery := flag.Duration("solve-every", 30*time.Second, "interval between solved enigmas; 0 disables")
	enigmas := flag.Int("enigmas", models.DefaultRules().TotalEnigmas, "enigmas before the final puzzle")
	masterPassword := flag.String("master-password", "", "log in as the game master instead of joining")
	heartbeat := flag.Duration("heartbeat", 0, "heartbeat interval; the rules default for the role when 0")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tokens reconcile.TokenStore = reconcile.NewMemoryTokenStore()
	if *tokenFile != "" {
		tokens = reconcile.NewFileTokenStore(*tokenFile)
	}

	client := escaperoom_client.NewClient(*server)
	clk := clockwork.NewRealClock()
	rules := models.DefaultRules()

	var endpoint reconcile.Endpoint = escaperoom_client.NewPlayerEndpoint(client)
	cfg := reconcile.PlayerRunnerConfig(rules)
	credential := *nickname
	if *masterPassword != "" {
		endpoint = escaperoom_client.NewMasterEndpoint(client)
		cfg = reconcile.MasterRunnerConfig(rules)
		credential = *masterPassword
	}
	if *heartbeat > 0 {
		cfg.HeartbeatInterval = *heartbeat
	}
	runner := reconcile.NewRunner(endpoint, tokens, clk, cfg)

	joinCh := make(chan struct{}, 1)
	runner.OnTransition(func(t reconcile.Transition) {
		log.Info().
			Str("from", string(t.From)).
			Str("to", string(t.To)).
			Bool("discard_token", t.DiscardToken).
			Int("remaining", runner.Remaining()).
			Int("session_remaining", runner.SessionRemaining()).
			Msg("state changed")
		if t.To == reconcile.StateLogin {
			select {
			case joinCh <- struct{}{}:
			default:
			}
		}
	})

	go joinLoop(ctx, clk, runner, joinCh, credential)
	if !cfg.Master {
		go pushLoop(ctx, clk, client, runner, tokens)
		if *solveEvery > 0 {
			go solveLoop(ctx, clk, client, runner, tokens, *solveEvery, *enigmas)
		}
	}

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("runner stopped")
	}
	log.Info().Str("state", string(runner.State())).Msg("player sim stopped")
}

// joinLoop joins with the nickname, or logs in when the runner is a master.
func joinLoop(ctx context.Context, clk clockwork.Clock, runner *reconcile.Runner, joinCh <-chan struct{}, credential string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-joinCh:
		}

		for runner.State() == reconcile.StateLogin {
			err := runner.Join(ctx, credential)
			if err == nil {
				log.Info().Msg("joined session")
				break
			}
			log.Warn().Err(err).Msg("join failed")
			select {
			case <-ctx.Done():
				return
			case <-clk.After(3 * time.Second):
			}
		}
	}
}

// pushLoop keeps a push subscription open while a token is held.
func pushLoop(ctx context.Context, clk clockwork.Clock, client *escaperoom_client.Client, runner *reconcile.Runner, tokens reconcile.TokenStore) {
	for {
		token, err := tokens.Load()
		if err == nil && token != "" {
			err = client.SubscribePush(ctx, token, func(envelope events.Envelope) {
				runner.Nudge()
			})
			if err != nil {
				log.Debug().Err(err).Msg("push channel closed")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-clk.After(2 * time.Second):
		}
	}
}

func solveLoop(ctx context.Context, clk clockwork.Clock, client *escaperoom_client.Client, runner *reconcile.Runner, tokens reconcile.TokenStore, every time.Duration, enigmas int) {
	ticker := clk.NewTicker(every)
	defer ticker.Stop()

	next := 1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		if runner.State() != reconcile.StatePlaying || next > enigmas+1 {
			continue
		}
		token, err := tokens.Load()
		if err != nil || token == "" {
			continue
		}

		if next <= enigmas {
			err = client.MarkEnigmaSolved(ctx, token, next)
		} else {
			err = client.MarkFinalSolved(ctx, token)
		}
		if err != nil {
			log.Warn().Err(err).Int("enigma", next).Msg("solve rejected")
			continue
		}
		log.Info().Int("enigma", next).Msg("solved")
		next++
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
