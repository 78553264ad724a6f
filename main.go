package main

import (
	"context"
	"os"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/sellvibe/internal/bot"
	"github.com/iamwavecut/sellvibe/internal/config"
	"github.com/iamwavecut/sellvibe/internal/db/sqlite"
	"github.com/iamwavecut/sellvibe/internal/handlers"
	"github.com/iamwavecut/sellvibe/internal/handlers/moderation"
	"github.com/iamwavecut/sellvibe/internal/infra"
	"github.com/iamwavecut/sellvibe/internal/infrastructure/telegram"
	"github.com/iamwavecut/sellvibe/internal/observability"
	"github.com/iamwavecut/sellvibe/internal/policy/permissions"
	"github.com/iamwavecut/sellvibe/internal/session"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.SvFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	observability.Init(cfg.MetricsAddr)

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	infra.GoRecoverable(-1, "process_updates", func() {
		defer cancelFunc()

		botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
		if err != nil {
			log.WithError(err).Errorln("cant initialize bot api")
			time.Sleep(1 * time.Second)
			log.Fatalln("exiting")
		}
		if log.Level(cfg.LogLevel) == log.TraceLevel {
			botAPI.Debug = true
		}
		defer botAPI.StopReceivingUpdates()

		client, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(cfg.DotPath), "bot.db")
		if err != nil {
			log.WithError(err).Fatalln("cant open db")
		}
		defer client.Close()

		service := bot.NewService(botAPI, client)
		gate := permissions.NewGate(client, cfg.AdminIDs)
		sessions := session.NewManager(cfg.Session.TTL)
		sender := telegram.NewOperations(botAPI, cfg.DefaultLanguage)
		dispatcher := moderation.NewDispatcher(service, sender, cfg.DefaultLanguage)

		bot.RegisterUpdateHandler("admin", handlers.NewAdmin(service, gate))
		bot.RegisterUpdateHandler("composer", handlers.NewComposer(service, sessions, dispatcher, gate))
		bot.RegisterUpdateHandler("moderation", dispatcher)

		updateConfig := api.NewUpdate(0)
		updateConfig.Timeout = 60
		updateProcessor := bot.NewUpdateProcessor(service)

		g, runCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			sessions.RunSweeper(runCtx, cfg.Session.SweepInterval)
			return nil
		})
		g.Go(func() error {
			for update := range botAPI.GetUpdatesChan(updateConfig) {
				update := update
				if err := updateProcessor.Process(runCtx, &update); err != nil {
					log.WithError(err).Errorln("cant process update")
				}
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			log.WithError(err).Errorln("run group stopped")
		}
	})

	<-ctx.Done()
	log.WithError(ctx.Err()).Errorln("no more updates")
	os.Exit(0)
}
