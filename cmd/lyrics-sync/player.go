package main

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"lyrics-sync/internal/player"
)

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "audio source utilities",
}

var playerListCmd = &cobra.Command{
	Use:   "list",
	Short: "list available mpris players",
	RunE: func(cmd *cobra.Command, args []string) error {
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		players, err := player.ListPlayers(bus)
		if err != nil {
			return err
		}
		if len(players) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no mpris players found")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "found %d mpris player(s):\n\n", len(players))
		for _, p := range players {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", p.Service)
			if p.Identity != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "    identity: %s\n", p.Identity)
			}
		}
		return nil
	},
}

func init() {
	playerCmd.AddCommand(playerListCmd)
	rootCmd.AddCommand(playerCmd)
}
