package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/bastionbot/bastion/internal/command/antinuke"
	_ "github.com/bastionbot/bastion/internal/command/quarantinecmd"
	_ "github.com/bastionbot/bastion/internal/command/setup"
	_ "github.com/bastionbot/bastion/internal/command/telegramcmd"
	_ "github.com/bastionbot/bastion/internal/command/whitelist"

	"github.com/bastionbot/bastion/internal/config"
	"github.com/bastionbot/bastion/internal/confirm"
	"github.com/bastionbot/bastion/internal/discord"
	"github.com/bastionbot/bastion/internal/logging"
	"github.com/bastionbot/bastion/internal/settings"
	"github.com/bastionbot/bastion/internal/stats"
	"github.com/bastionbot/bastion/internal/storage"
	"github.com/bastionbot/bastion/internal/telegram"
	"github.com/bastionbot/bastion/internal/threat"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFile)
	log.Info().Msg("starting bastion")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	journal, err := storage.OpenIncidentJournal(cfg.IncidentLogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open incident journal")
	}
	defer journal.Close()

	var cipher *telegram.TokenCipher
	if cfg.TelegramTokenKey != "" {
		cipher, err = telegram.NewTokenCipher(cfg.TelegramTokenKey)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid telegram token key")
		}
	} else {
		log.Info().Msg("no telegram token key configured, relay disabled")
	}
	relay := telegram.NewRelay(db, cipher, log)

	defaults := threat.Settings{
		Threshold:      cfg.Threat.Threshold,
		DecayPerSecond: cfg.Threat.DecayPerSecond,
		Weights: map[threat.EventType]float64{
			threat.EventChannelDelete: cfg.Threat.ChannelDelete,
			threat.EventChannelCreate: cfg.Threat.ChannelCreate,
			threat.EventRoleCreate:    cfg.Threat.RoleCreate,
			threat.EventBan:           cfg.Threat.Ban,
			threat.EventKick:          cfg.Threat.Kick,
			threat.EventWebhookCreate: cfg.Threat.WebhookCreate,
		},
	}
	settingsCache := settings.NewCache(db, defaults, log)

	store := threat.NewStore()
	engine := threat.NewEngine(store, settingsCache)
	confirms := confirm.NewManager(log)
	counters := &stats.Counters{}

	go threat.RunDecay(ctx, store, settingsCache, threat.DecayInterval, log)
	go storage.RunGrantJanitor(ctx, db, log)
	go stats.Run(ctx, cfg.StatsListenAddr, db, counters, confirms, log)

	errCh := make(chan error, 1)
	go func() {
		svc := &discord.Services{
			Config:   cfg,
			DB:       db,
			Journal:  journal,
			Relay:    relay,
			Settings: settingsCache,
			Engine:   engine,
			Confirms: confirms,
			Counters: counters,
			Log:      log,
		}
		if err := discord.StartBot(ctx, svc); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("discord bot error")
		}
		cancel()
	case <-ctx.Done():
	}

	log.Info().Msg("bastion exited cleanly")
}
