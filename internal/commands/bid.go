package commands

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/bidgame/internal/config"
	"github.com/susu3304/bidgame/internal/guess"
	"github.com/susu3304/bidgame/internal/money"
)

// HandleBid dispatches the /bid subcommands.
func HandleBid(s *discordgo.Session, i *discordgo.InteractionCreate, svc *guess.Service, cfg *config.Config) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respondText(s, i, "サブコマンドが指定されていません")
		return
	}

	h := &bidHandler{svc: svc, cfg: cfg}
	chunks := h.run(context.Background(), guess.Address(interactionUserID(i)), data.Options[0])
	if len(chunks) == 0 {
		return
	}
	respondText(s, i, chunks[0])
	for _, c := range chunks[1:] {
		if _, err := s.ChannelMessageSend(i.ChannelID, c); err != nil {
			log.Printf("commands: send list chunk: %v", err)
		}
	}
}

type bidHandler struct {
	svc *guess.Service
	cfg *config.Config
}

func (h *bidHandler) format(units int64) string {
	return money.Format(units, h.cfg.StakeDecimals)
}

// run executes one subcommand and returns the reply split into messages.
func (h *bidHandler) run(ctx context.Context, caller guess.Address, sub *discordgo.ApplicationCommandInteractionDataOption) []string {
	reply := func(format string, args ...interface{}) []string {
		return []string{fmt.Sprintf(format, args...)}
	}
	text := func(s string) []string {
		return []string{s}
	}

	switch sub.Name {
	case "create":
		g, stake, msg := h.guessAndStake(sub.Options)
		if msg != "" {
			return text(msg)
		}
		id, err := h.svc.CreateGame(ctx, caller, g, stake)
		if err != nil {
			return text(errorMessage(err))
		}
		return reply("🎲 ラウンド #%d を作成しました（賭け金: %s, 予想: %d）\n`/bid join id:%d` で参加できます%s", id, h.format(stake), g, id, h.roundLink(id))

	case "join":
		id, ok := roundIDOption(sub.Options)
		if !ok {
			return reply("ラウンドIDの指定が必要です")
		}
		g, stake, msg := h.guessAndStake(sub.Options)
		if msg != "" {
			return text(msg)
		}
		if err := h.svc.JoinGame(ctx, caller, id, g, stake); err != nil {
			return text(errorMessage(err))
		}
		return reply("✅ ラウンド #%d に参加しました（予想: %d）", id, g)

	case "limit":
		id, ok := roundIDOption(sub.Options)
		limit := getIntOption(sub.Options, "limit")
		if !ok || limit == nil {
			return reply("id と limit の指定が必要です")
		}
		if err := h.svc.LimitParticipants(ctx, caller, id, int(*limit)); err != nil {
			return text(errorMessage(err))
		}
		if *limit == 0 {
			return reply("ラウンド #%d の人数制限を解除しました", id)
		}
		return reply("ラウンド #%d の参加上限を %d 人にしました", id, *limit)

	case "finish":
		id, ok := roundIDOption(sub.Options)
		if !ok {
			return reply("ラウンドIDの指定が必要です")
		}
		target, err := h.svc.FinishGame(ctx, caller, id)
		if err != nil {
			return text(errorMessage(err))
		}
		round, err := h.svc.Round(ctx, id)
		if err != nil {
			return reply("🏁 ラウンド #%d を締め切りました。当選番号: **%d**", id, target)
		}
		return reply("🏁 ラウンド #%d を締め切りました。当選番号: **%d**（当選者 %d 人、1人あたり %s）",
			id, target, round.WinnerCount, h.format(guess.Share(round.Pool, round.WinnerCount)))

	case "claim":
		id, ok := roundIDOption(sub.Options)
		if !ok {
			return reply("ラウンドIDの指定が必要です")
		}
		share, err := h.svc.Claim(ctx, caller, id)
		if err != nil {
			return text(errorMessage(err))
		}
		return reply("💰 %s を受け取りました", h.format(share))

	case "list":
		games, err := h.svc.ActualGames(ctx)
		if err != nil {
			log.Printf("commands: actual games: %v", err)
			return reply("一覧の取得に失敗しました")
		}
		if len(games) == 0 {
			return reply("参加受付中のラウンドはありません")
		}
		return chunkLines(h.gameLines(games), discordMessageLimit)

	case "mine":
		games, err := h.svc.UserGames(ctx, caller)
		if err != nil {
			log.Printf("commands: user games: %v", err)
			return reply("一覧の取得に失敗しました")
		}
		if len(games) == 0 {
			return reply("参加したラウンドはありません")
		}
		return chunkLines(h.userGameLines(games), discordMessageLimit)

	case "random":
		n, err := h.svc.GenerateRandom(ctx, caller)
		if err != nil {
			log.Printf("commands: random: %v", err)
			return reply("抽選のプレビューに失敗しました")
		}
		return reply("🔮 今締め切った場合の当選番号: %d", n)

	case "wallet":
		balance, err := h.svc.Balance(ctx, caller)
		if err != nil {
			log.Printf("commands: balance: %v", err)
			return reply("残高の取得に失敗しました")
		}
		return reply("👛 残高: %s", h.format(balance))

	case "deposit":
		if h.cfg.FaucetAmount <= 0 {
			return reply("この環境では入金できません")
		}
		balance, err := h.svc.Deposit(ctx, caller, h.cfg.FaucetAmount)
		if err != nil {
			return text(errorMessage(err))
		}
		return reply("👛 %s を入金しました。残高: %s", h.format(h.cfg.FaucetAmount), h.format(balance))

	default:
		return reply("未知のサブコマンドです")
	}
}

func (h *bidHandler) guessAndStake(opts []*discordgo.ApplicationCommandInteractionDataOption) (int, int64, string) {
	g := getIntOption(opts, "guess")
	stakeOpt := getStringOption(opts, "stake")
	if g == nil || stakeOpt == nil {
		return 0, 0, "guess と stake の指定が必要です"
	}
	stake, err := money.Parse(*stakeOpt, h.cfg.StakeDecimals)
	if errors.Is(err, money.ErrNotPositive) {
		// Let the round logic reject it with its own stake error.
		return int(*g), 0, ""
	}
	if err != nil {
		return 0, 0, fmt.Sprintf("賭け金を解釈できません: %s", *stakeOpt)
	}
	return int(*g), stake, ""
}

// roundLink points at the public round view when a web base URL is known.
func (h *bidHandler) roundLink(id guess.RoundID) string {
	if h.cfg.WebUIBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("\n%s/api/public/games/%d", h.cfg.WebUIBaseURL, id)
}

func roundIDOption(opts []*discordgo.ApplicationCommandInteractionDataOption) (guess.RoundID, bool) {
	id := getIntOption(opts, "id")
	if id == nil || *id < 0 {
		return 0, false
	}
	return guess.RoundID(*id), true
}

func (h *bidHandler) gameLines(games []guess.RoundSummary) []string {
	lines := make([]string, 0, len(games))
	for _, g := range games {
		limit := "なし"
		if g.ParticipantLimit > 0 {
			limit = fmt.Sprintf("%d", g.ParticipantLimit)
		}
		lines = append(lines, fmt.Sprintf("#%d 賭け金 %s / 参加 %d人 (上限 %s) / 受付終了 <t:%d:R> / 主催 <@%s>%s",
			g.ID, h.format(g.Stake), g.Participants, limit, g.JoinDeadline.Unix(), g.Owner, h.roundLink(g.ID)))
	}
	return lines
}

func statusLabel(s guess.Status) string {
	switch s {
	case guess.StatusInProgress:
		return "受付中"
	case guess.StatusReadyToFinalize:
		return "締め切り待ち"
	case guess.StatusFinalizedUnclaimed:
		return "当選・未受取"
	default:
		return "終了"
	}
}

func (h *bidHandler) userGameLines(games []guess.UserRound) []string {
	lines := make([]string, 0, len(games))
	for _, g := range games {
		line := fmt.Sprintf("#%d 予想 %d / 賭け金 %s / %s", g.ID, g.Guess, h.format(g.Stake), statusLabel(g.Status))
		if g.TargetNumber != nil {
			line += fmt.Sprintf(" / 当選番号 %d", *g.TargetNumber)
		}
		lines = append(lines, line)
	}
	return lines
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, guess.ErrInvalidStake):
		return "賭け金なしのラウンドは作成できません"
	case errors.Is(err, guess.ErrInvalidGuess):
		return "0〜100 の数字を選んでください"
	case errors.Is(err, guess.ErrInsufficientFunds):
		return "残高が足りません"
	case errors.Is(err, guess.ErrRoundNotFound):
		return "そのラウンドは存在しません"
	case errors.Is(err, guess.ErrJoinWindowClosed):
		return "参加受付は終了しています"
	case errors.Is(err, guess.ErrDuplicateOwnerJoin):
		return "主催者は既に参加しています"
	case errors.Is(err, guess.ErrAlreadyJoined):
		return "既にこのラウンドに参加しています"
	case errors.Is(err, guess.ErrStakeMismatch):
		return "賭け金はラウンドと同じ額にしてください"
	case errors.Is(err, guess.ErrParticipantLimitReached):
		return "参加人数の上限に達しています"
	case errors.Is(err, guess.ErrNotOwner):
		return "人数制限を設定できるのは主催者だけです"
	case errors.Is(err, guess.ErrLimitBelowCurrent):
		return "既に上限より多くの参加者がいます"
	case errors.Is(err, guess.ErrAlreadySettled):
		return "このラウンドは既に締め切られています"
	case errors.Is(err, guess.ErrFinalizeTooEarly):
		return "まだ締め切ることはできません"
	case errors.Is(err, guess.ErrNotAParticipant):
		return "締め切れるのは参加者だけです"
	case errors.Is(err, guess.ErrNotSettled):
		return "このラウンドはまだ締め切られていません"
	case errors.Is(err, guess.ErrNotAWinner):
		return "当選者ではありません"
	case errors.Is(err, guess.ErrAlreadyClaimed):
		return "賞金は受け取り済みです"
	case errors.Is(err, guess.ErrInvalidLimit):
		return "上限は0以上で指定してください"
	case errors.Is(err, guess.ErrAnonymousCaller):
		return "ユーザーを特定できませんでした"
	default:
		log.Printf("commands: unexpected error: %v", err)
		return "処理に失敗しました"
	}
}
