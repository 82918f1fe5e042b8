package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"lyrics-sync/internal/logging"
	"lyrics-sync/internal/session"
	"lyrics-sync/internal/ui"
)

var (
	// flags for run
	lrcFile    string
	audioFile  string
	sourceKind string
	socketPath string
	syncOffset float64
	watchLrc   bool
	withTUI    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the lyrics daemon",
	Long: `loads the lyrics file, follows the configured audio source and publishes
the active line until interrupted. with --tui the lyrics are also shown in
the terminal.`,
	RunE: runDaemon,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		flags := cmd.Flags()
		flags.StringVar(&lrcFile, "lrc", "", "LRC lyrics file")
		flags.StringVar(&audioFile, "audio", "", "media to load into the audio source")
		flags.StringVarP(&sourceKind, "source", "s", "", "audio source (clock, playerctl, mpris)")
		flags.StringVar(&socketPath, "socket", "", "unix socket for line subscribers")
		flags.Float64VarP(&syncOffset, "offset", "o", 0, "sync offset in seconds")
		flags.BoolVarP(&watchLrc, "watch", "w", false, "reload the lyrics file when it changes")
		flags.BoolVarP(&withTUI, "tui", "t", false, "show the terminal viewer")
	}
	rootCmd.AddCommand(runCmd)
}

func applyRunFlags(cmd *cobra.Command) {
	cfg := application.Config()
	flags := cmd.Flags()

	if flags.Changed("lrc") {
		cfg.App.LyricsFile = lrcFile
	}
	if flags.Changed("audio") {
		cfg.App.AudioFile = audioFile
	}
	if flags.Changed("source") {
		cfg.Player.Source = sourceKind
	}
	if flags.Changed("socket") {
		cfg.App.SocketPath = socketPath
	}
	if flags.Changed("offset") {
		cfg.Player.SyncOffset = syncOffset
	}
	if flags.Changed("watch") {
		cfg.App.Watch = watchLrc
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if withTUI {
		return runViewer(ctx)
	}
	return application.Run(ctx)
}

func runViewer(ctx context.Context) error {
	// 终端归 TUI 使用，日志写入文件
	logPath := filepath.Join(os.TempDir(), "lyrics-sync.log")
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		logging.SetOutput(f)
		defer f.Close()
	} else {
		logging.SetOutput(io.Discard)
	}
	defer logging.SetOutput(os.Stderr)

	if err := application.Start(); err != nil {
		application.Close()
		return err
	}
	defer application.Close()

	model := ui.NewModel(session.MustFromContext(ctx))
	defer model.Stop()

	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running bubble tea: %w", err)
	}
	return nil
}
