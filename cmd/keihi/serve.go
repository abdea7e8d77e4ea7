package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/spf13/cobra"

	"github.com/keihibot/keihi/internal/bot"
	"github.com/keihibot/keihi/internal/config"
	"github.com/keihibot/keihi/internal/drive"
	"github.com/keihibot/keihi/internal/export"
	"github.com/keihibot/keihi/internal/googleapi"
	"github.com/keihibot/keihi/internal/health"
	"github.com/keihibot/keihi/internal/localcache"
	"github.com/keihibot/keihi/internal/ocr"
	"github.com/keihibot/keihi/internal/session"
	"github.com/keihibot/keihi/internal/settings"
	"github.com/keihibot/keihi/internal/sheet"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Slack bot",
	Long:  `Run the Slack socket-mode bot and the HTTP health/metrics listener until SIGINT or SIGTERM.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(ExitConfigError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients, err := googleapi.NewClients(ctx, cfg.GoogleCredentials, cfg.OCREnabled)
	if err != nil {
		fmt.Fprintf(os.Stderr, "google credentials: %v\n", err)
		os.Exit(ExitConfigError)
	}

	// The lookaside cache is advisory; a broken database file must not keep
	// the bot down.
	var folderCache drive.FolderCache
	var registerTemp func(string) error
	cache, err := localcache.Open(cfg.Options.CachePath())
	if err != nil {
		slog.Warn("local cache unavailable, running without it", "path", cfg.Options.CachePath(), "error", err)
	} else {
		defer cache.Close()
		folderCache = cache
		registerTemp = cache.RegisterTempFile
	}

	sheetAPI := sheet.NewAPI(clients.Sheets)
	settingsStore := settings.NewStore(sheetAPI, cfg.SettingsSpreadsheetID)
	driveMgr := drive.NewManager(drive.NewAPI(clients.Drive), cfg.DriveRootFolderID, settingsStore, folderCache)
	sheetSvc := sheet.NewService(sheetAPI, settingsStore, driveMgr)
	exporter := export.NewExporter(settingsStore, sheetSvc, driveMgr, clients.HTTP).
		WithSpool(cfg.Options.TempDir, registerTemp)

	pending := session.New[string, bot.PendingReceipt](cfg.Options.SessionTTL())
	pending.StartSweeper(ctx, cfg.Options.CleanupInterval())

	metrics := health.NewMetrics()
	healthSrv := health.NewServer(cfg.ListenAddr, metrics)

	slackAPI := slack.New(cfg.SlackBotToken, slack.OptionAppLevelToken(cfg.SlackAppToken))
	socketClient := socketmode.New(slackAPI)
	b := bot.New(slackAPI, settingsStore, sheetSvc, driveMgr, exporter,
		ocr.New(clients.Vision), pending, metrics)
	runner := bot.NewRunner(socketClient, b, healthSrv.SetReady)

	go cleanupLoop(ctx, cache, &cfg.Options)

	slog.Info("keihi starting", "version", Version, "addr", cfg.ListenAddr, "ocr", cfg.OCREnabled)

	errc := make(chan error, 2)
	go func() { errc <- healthSrv.Run(ctx) }()
	go func() { errc <- runner.Run(ctx) }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		return nil
	case err := <-errc:
		return err
	}
}

// cleanupLoop prunes stale cache entries and removes old temp files on the
// configured interval.
func cleanupLoop(ctx context.Context, cache *localcache.Cache, opts *config.Options) {
	if cache == nil {
		return
	}
	ticker := time.NewTicker(opts.CleanupInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n, err := cache.PruneFolders(opts.FolderCacheMaxAge()); err != nil {
			slog.Warn("pruning folder cache failed", "error", err)
		} else if n > 0 {
			slog.Debug("pruned folder cache entries", "count", n)
		}

		stale, err := cache.StaleTempFiles(opts.TempFileMaxAge())
		if err != nil {
			slog.Warn("listing stale temp files failed", "error", err)
			continue
		}
		for _, path := range stale {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				slog.Warn("removing temp file failed", "path", path, "error", err)
				continue
			}
			if err := cache.ForgetTempFile(path); err != nil {
				slog.Warn("forgetting temp file failed", "path", path, "error", err)
			}
		}
	}
}
