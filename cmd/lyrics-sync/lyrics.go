package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lyrics-sync/internal/lyrics"
	"lyrics-sync/internal/session"
	"lyrics-sync/pkg/lrc"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "print the timed lines of an LRC file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := session.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		n, err := sess.LoadLyrics(args[0])
		if err != nil {
			return err
		}
		for _, line := range sess.Lyrics.Lines() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", lrc.FormatTimestamp(line.Time), line.Text)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d lines\n", n)
		return nil
	},
}

var atCmd = &cobra.Command{
	Use:   "at <file> <seconds>",
	Short: "print the line active at a playback position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := session.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		t, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid position %q: %w", args[1], err)
		}
		if _, err := sess.LoadLyrics(args[0]); err != nil {
			return err
		}

		lines := sess.Lyrics.Lines()
		idx := lyrics.ActiveIndex(lines, t)
		if idx == lyrics.NoLine {
			fmt.Fprintln(cmd.OutOrStdout(), "(before first line)")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d %s %s\n", idx, lrc.FormatTimestamp(lines[idx].Time), lines[idx].Text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(atCmd)
}
