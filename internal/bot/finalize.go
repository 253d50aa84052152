package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/susu3304/bidgame/internal/guess"
)

const finalizePollInterval = 15 * time.Second

type phase int

const (
	phaseOpen phase = iota
	phaseJoinClosed
	phaseReady
)

type outbox interface {
	sendWithRetry(ctx context.Context, content string) error
}

// finalizeWorker announces when a round's join window closes and when it
// becomes eligible for finishing. Each transition is posted once.
type finalizeWorker struct {
	out      outbox
	svc      *guess.Service
	clock    clock.Clock
	interval time.Duration
	notified map[guess.RoundID]phase
	stopChan chan struct{}
	done     chan struct{}
}

func newFinalizeWorker(out outbox, svc *guess.Service) *finalizeWorker {
	return &finalizeWorker{
		out:      out,
		svc:      svc,
		clock:    clock.New(),
		interval: finalizePollInterval,
		notified: make(map[guess.RoundID]phase),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *finalizeWorker) start() {
	if w == nil {
		return
	}
	go w.loop()
}

func (w *finalizeWorker) stop() {
	if w == nil {
		return
	}
	close(w.stopChan)
	<-w.done
}

func (w *finalizeWorker) loop() {
	defer close(w.done)
	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick()
		case <-w.stopChan:
			return
		}
	}
}

func (w *finalizeWorker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rounds, err := w.svc.UnsettledRounds(ctx)
	if err != nil {
		log.Printf("finalize: list unsettled rounds: %v", err)
		return
	}

	now := w.clock.Now()
	live := make(map[guess.RoundID]bool, len(rounds))
	for _, r := range rounds {
		live[r.ID] = true
		target := phaseOpen
		switch {
		case !now.Before(r.FinalizeAt):
			target = phaseReady
		case !now.Before(r.JoinDeadline):
			target = phaseJoinClosed
		}
		if target <= w.notified[r.ID] {
			continue
		}
		if err := w.out.sendWithRetry(ctx, phaseMessage(r, target)); err != nil {
			log.Printf("finalize: announce round %d: %v", r.ID, err)
			continue
		}
		w.notified[r.ID] = target
	}

	for id := range w.notified {
		if !live[id] {
			delete(w.notified, id)
		}
	}
}

func phaseMessage(r guess.RoundSummary, p phase) string {
	if p == phaseReady {
		return fmt.Sprintf("🏁 ラウンド #%d は締め切れます。参加者は `/bid finish id:%d` で抽選してください。", r.ID, r.ID)
	}
	return fmt.Sprintf("⏰ ラウンド #%d の参加受付を締め切りました（参加者 %d 人）。", r.ID, r.Participants)
}
