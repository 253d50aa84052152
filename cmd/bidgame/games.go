package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/susu3304/bidgame/internal/guess"
	"github.com/susu3304/bidgame/internal/money"
)

func gamesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "List rounds still accepting joiners, or one user's rounds with --user",
		Args:  cobra.NoArgs,
		RunE:  listGames,
	}
	cmd.Flags().StringP("user", "u", "", "list the rounds this address holds a bid in")
	return cmd
}

func listGames(cmd *cobra.Command, args []string) error {
	user, _ := cmd.Flags().GetString("user")
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := newService(store, cfg)
	if err != nil {
		return err
	}

	if user == "" {
		games, err := svc.ActualGames(ctx)
		if err != nil {
			return err
		}
		return writeGames(cmd.OutOrStdout(), games, cfg.StakeDecimals)
	}
	games, err := svc.UserGames(ctx, guess.Address(user))
	if err != nil {
		return err
	}
	return writeUserGames(cmd.OutOrStdout(), games, cfg.StakeDecimals)
}

func writeGames(out io.Writer, games []guess.RoundSummary, decimals int32) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOWNER\tSTAKE\tPARTICIPANTS\tLIMIT\tJOIN DEADLINE")
	for _, g := range games {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n",
			g.ID, g.Owner, money.Format(g.Stake, decimals), g.Participants, g.ParticipantLimit,
			g.JoinDeadline.Format(time.RFC3339))
	}
	return w.Flush()
}

func writeUserGames(out io.Writer, games []guess.UserRound, decimals int32) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tGUESS\tSTAKE\tTARGET\tWINNER\tCLAIMED\tSTATUS")
	for _, g := range games {
		target := "-"
		if g.TargetNumber != nil {
			target = fmt.Sprint(*g.TargetNumber)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%t\t%t\t%s\n",
			g.ID, g.Guess, money.Format(g.Stake, decimals), target, g.Winner, g.Claimed, g.Status)
	}
	return w.Flush()
}
