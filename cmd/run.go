package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/bot"
	"github.com/dayuer/cacophony-go/internal/bus"
	"github.com/dayuer/cacophony-go/internal/channels"
	"github.com/dayuer/cacophony-go/internal/config"
	"github.com/dayuer/cacophony-go/internal/logging"
	"github.com/dayuer/cacophony-go/internal/plugins/all"
	"github.com/dayuer/cacophony-go/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect the transports and start the bot",
	RunE:  runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	if pid, ok := runningPID(); ok {
		return fmt.Errorf("cacophony is already running (PID %d)", pid)
	}
	if err := writePID(); err != nil {
		log.Warn("writing pid file", zap.Error(err))
	}
	defer removePID()

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	msgBus := bus.NewMessageBus()
	chMgr := newChannelManager(cfg, msgBus, log)
	if enabled := chMgr.EnabledChannels(); len(enabled) > 0 {
		log.Info("transports enabled", zap.Strings("channels", enabled))
	}

	app, err := bot.New(ctx, bot.Options{
		Config:    cfg,
		Logger:    log,
		DB:        db,
		Bus:       msgBus,
		Transport: chMgr,
		Catalog:   all.Catalog(),
	})
	if err != nil {
		return err
	}

	// Transports are stopped by the application once it has drained.
	transportsDone := make(chan struct{})
	go func() {
		defer close(transportsDone)
		chMgr.StartAll(context.WithoutCancel(ctx))
	}()

	runErr := app.Run(ctx)
	<-transportsDone
	log.Info("bye")
	return runErr
}

func newChannelManager(cfg config.Config, msgBus *bus.MessageBus, log *zap.Logger) *channels.Manager {
	chMgr := channels.NewManager(msgBus, log)
	if cfg.Token != "" {
		chMgr.Register(channels.NewDiscordChannel(cfg.Token, bot.Presence(cfg.CommandPrefix), msgBus, log))
	}
	if cfg.WebSocket.Enabled {
		chMgr.Register(channels.NewWebSocketChannel(cfg.WebSocket, msgBus, log))
	}
	return chMgr
}
