package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/susu3304/bidgame/internal/api"
	"github.com/susu3304/bidgame/internal/bot"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when DISCORD_TOKEN is set, the Discord bot",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
}

func serve(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := newService(store, cfg)
	if err != nil {
		return err
	}

	if cfg.BotEnabled() {
		discordBot, err := bot.New(cfg, svc)
		if err != nil {
			return err
		}
		if err := discordBot.Start(); err != nil {
			return err
		}
		defer discordBot.Stop()
	} else {
		log.Println("DISCORD_TOKEN not set, running without the Discord bot")
	}

	apiServer := api.New(cfg, svc)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("API server error: %v", err)
		}
	}()

	// Wait for signal to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	return nil
}
