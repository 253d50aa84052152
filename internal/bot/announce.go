package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/susu3304/bidgame/internal/guess"
)

// announcer relays core events to the announce channel without blocking the publisher.
type announcer struct {
	out outbox
}

func newAnnouncer(out outbox) *announcer {
	return &announcer{out: out}
}

func (a *announcer) Publish(ev guess.Event) {
	msg := formatEvent(ev)
	if msg == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.out.sendWithRetry(ctx, msg); err != nil {
			log.Printf("announce: %s round %d: %v", ev.Type, ev.RoundID, err)
		}
	}()
}

func formatEvent(ev guess.Event) string {
	switch ev.Type {
	case guess.EventRoundCreated:
		return fmt.Sprintf("🎲 <@%s> がラウンド #%d を作成しました。`/bid join id:%d` で参加できます", ev.Bidder, ev.RoundID, ev.RoundID)
	case guess.EventParticipantJoined:
		return fmt.Sprintf("✅ <@%s> がラウンド #%d に参加しました", ev.Bidder, ev.RoundID)
	case guess.EventGameFinished:
		return fmt.Sprintf("🏁 ラウンド #%d の当選番号は **%d** です。当選者は `/bid claim id:%d` で受け取れます", ev.RoundID, ev.Guess, ev.RoundID)
	}
	return ""
}
