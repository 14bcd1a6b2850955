package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tazhate/medbot/config"
	"github.com/tazhate/medbot/internal/bot"
	"github.com/tazhate/medbot/internal/clients/caldav"
	"github.com/tazhate/medbot/internal/scheduler"
	"github.com/tazhate/medbot/internal/service"
	"github.com/tazhate/medbot/internal/storage"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init storage")
	}
	defer store.Close()

	medSvc := service.NewMedicationService(store, cfg.Timezone)

	caldavClient := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
	calSvc := service.NewCalendarService(medSvc, caldavClient, cfg.Timezone)
	if cfg.CalDAVCalendar != "" {
		calSvc.SetCalendarPath(cfg.CalDAVCalendar)
	}

	tgBot, err := bot.New(cfg, medSvc, calSvc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init bot")
	}

	if err := tgBot.SetupWebhook(); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup webhook")
	}

	sched := scheduler.New(cfg, medSvc, calSvc)
	sched.SetNotifier(tgBot)
	tgBot.SetRecheck(sched)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler error")
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Bot error")
		}
	}()

	log.Info().Msg("MedBot started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down...")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping bot")
	}

	log.Info().Msg("MedBot stopped")
}
