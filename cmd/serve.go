package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaam8/election_ledger/internal/api"
	"github.com/mattermost/mattermost-server/v6/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and, when BOT_TOKEN is set, the Mattermost bot",
		RunE:  serveRun,
	}
}

func serveRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	a, err := newApp(cfg, log)
	if err != nil {
		log.Error("failed to start", zap.Error(err))
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to close storage", zap.Error(err))
		}
	}()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewRestHandler(a.service, log), a.registry)
	server := &http.Server{
		Addr:              ":" + cfg.RestPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("rest server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var webSocketClient *model.WebSocketClient
	if cfg.BotEnabled() {
		webSocketClient, err = runBot(ctx, a)
		if err != nil {
			log.Error("failed to start bot", zap.Error(err))
			_ = server.Close()
			return err
		}
	}

	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok {
			log.Error("rest server stopped", zap.Error(err))
			return fmt.Errorf("rest server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown rest server", zap.Error(err))
	}
	if webSocketClient != nil {
		webSocketClient.Close()
	}
	log.Info("server graceful stopped")
	return nil
}

func runBot(ctx context.Context, a *app) (*model.WebSocketClient, error) {
	client := model.NewAPIv4Client(cfg.MmURL)
	client.SetToken(cfg.BotToken)
	user, _, err := client.GetUser("me", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	botID := user.Id

	webSocketClient, err := model.NewWebSocketClient4(cfg.MmWsURL, cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to webSocket: %w", err)
	}
	handler := api.NewBotHandler(a.service, log, client, cfg.ChannelID)
	webSocketClient.Listen()

	go func() {
		for event := range webSocketClient.EventChannel {
			if event.EventType() == model.WebsocketEventPosted {
				log.Debug("new message", zap.String("event", event.EventType()))
				handler.HandleMessage(ctx, event, botID)
			}
		}
	}()
	log.Info("mattermost bot listening", zap.String("bot_id", botID))
	return webSocketClient, nil
}
