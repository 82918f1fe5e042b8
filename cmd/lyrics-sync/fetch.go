package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lyrics-sync/pkg/fileutil"
	"lyrics-sync/pkg/lrc"
	"lyrics-sync/pkg/lrccache"
	"lyrics-sync/pkg/music"
)

var (
	// flags for fetch
	fetchOut       string
	fetchDuration  float64
	fetchRefresh   bool
	fetchProviders []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <artist> <title>",
	Short: "download synced lyrics into an LRC file",
	Long: `asks each configured provider (lrclib, netease) in turn for synced lyrics
and writes the first timed result as an LRC file. downloads are remembered, so
fetching the same song again reuses the file unless --refresh is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		artist, title := args[0], args[1]
		cfg := application.Config()
		key := lrccache.Key(artist, title)

		var cache *lrccache.Cache
		if cfg.Fetch.CacheFile != "" {
			c, err := lrccache.Open(cfg.Fetch.CacheFile)
			if err != nil {
				return err
			}
			cache = c
		}

		if cache != nil && !fetchRefresh {
			if path, ok := cache.Get(key); ok {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "already downloaded: %s\n", path)
					return nil
				}
			}
		}

		providers := cfg.Fetch.Providers
		if cmd.Flags().Changed("provider") {
			providers = fetchProviders
		}
		manager, err := music.CreateManager(providers, music.Options{
			LrclibURL:     cfg.Lrclib.BaseURL,
			Retries:       cfg.Lrclib.Retries,
			Timeout:       cfg.Lrclib.Timeout,
			NeteaseURL:    cfg.Fetch.NeteaseURL,
			NeteaseCookie: cfg.Fetch.NeteaseCookie,
		})
		if err != nil {
			return err
		}

		res, err := manager.Lyrics(cmd.Context(), title, artist, fetchDuration)
		if err != nil {
			return fmt.Errorf("lyrics not found: %w", err)
		}

		out := fetchOut
		if out == "" {
			out = fmt.Sprintf("%s - %s.lrc", artist, title)
		}
		if abs, err := filepath.Abs(out); err == nil {
			out = abs
		}
		// 统一输出为按时间排序的标准格式
		if err := fileutil.WriteFileOverwrite(out, []byte(lrc.Format(lrc.Parse(res.Text))), 0644); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Add(key, out); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "saved %d lines from %s to %s\n", res.Lines, res.Provider, out)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "output file (default \"<artist> - <title>.lrc\")")
	fetchCmd.Flags().Float64VarP(&fetchDuration, "duration", "d", 0, "track length in seconds, improves matching")
	fetchCmd.Flags().BoolVarP(&fetchRefresh, "refresh", "r", false, "download again even if cached")
	fetchCmd.Flags().StringSliceVarP(&fetchProviders, "provider", "p", nil, "providers to ask, in order (lrclib, netease)")
	rootCmd.AddCommand(fetchCmd)
}
