package bot

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/bidgame/internal/config"
	"github.com/susu3304/bidgame/internal/guess"
)

type Bot struct {
	session   *discordgo.Session
	svc       *guess.Service
	config    *config.Config
	finalizer *finalizeWorker
}

func New(cfg *config.Config, svc *guess.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session: session,
		svc:     svc,
		config:  cfg,
	}

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsGuilds

	if cfg.AnnounceChannelID != "" {
		out := newSender(session, cfg.AnnounceChannelID)
		bot.finalizer = newFinalizeWorker(out, svc)
		svc.SetEventSink(newAnnouncer(out))
	}

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.finalizer.start()
	log.Println("Discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	b.finalizer.stop()
	return b.session.Close()
}
