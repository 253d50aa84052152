package commands

import "github.com/bwmarrin/discordgo"

func GetCommands() []*discordgo.ApplicationCommand {
	roundID := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "id",
		Description: "ラウンドID",
		Required:    true,
		MinValue:    floatPtr(0),
	}
	guessOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "guess",
		Description: "予想する数字 (0〜100)",
		Required:    true,
		MinValue:    floatPtr(0),
		MaxValue:    100,
	}
	stakeOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "stake",
		Description: "賭け金 (例: 1.50)",
		Required:    true,
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:         "bid",
			Description:  "数字当てオークション",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "新しいラウンドを作成します",
					Options:     []*discordgo.ApplicationCommandOption{guessOpt, stakeOpt},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "join",
					Description: "ラウンドに参加します",
					Options:     []*discordgo.ApplicationCommandOption{roundID, guessOpt, stakeOpt},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "limit",
					Description: "参加人数の上限を設定します (0で解除)",
					Options: []*discordgo.ApplicationCommandOption{
						roundID,
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "limit",
							Description: "オーナーを含む上限人数",
							Required:    true,
							MinValue:    floatPtr(0),
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "finish",
					Description: "ラウンドを締め切り、当選者を決めます",
					Options:     []*discordgo.ApplicationCommandOption{roundID},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "claim",
					Description: "賞金を受け取ります",
					Options:     []*discordgo.ApplicationCommandOption{roundID},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "参加受付中のラウンド一覧",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "mine",
					Description: "自分が参加したラウンド一覧",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "random",
					Description: "今締め切った場合の抽選結果をプレビューします",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "wallet",
					Description: "残高を表示します",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "deposit",
					Description: "テスト用の残高を受け取ります",
				},
			},
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func floatPtr(f float64) *float64 {
	return &f
}
