package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"contestwatch/internal/aggregator"
	"contestwatch/internal/app"
	"contestwatch/internal/config"
	"contestwatch/internal/domain"
	"contestwatch/internal/notify"
	"contestwatch/internal/source"
	"contestwatch/internal/storage"
)

// runtime holds every component a command may need.
type runtime struct {
	cfg      config.Config
	log      *logrus.Logger
	repo     *storage.BadgerRepository
	svc      *app.Service
	telegram *notify.TelegramNotifier
}

func setup(c *cli.Context) (*runtime, error) {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Error loading configuration: %v", err), ExitUsageError)
	}

	// --- Logger Setup ---
	log := cfg.NewLogger()
	log.SetOutput(os.Stderr)
	log.WithFields(logrus.Fields{
		"storage_path": cfg.Storage.Path,
		"notifier":     cfg.Notifications.Notifier,
	}).Debug("Configuration loaded successfully")

	// Database
	repo, err := storage.NewBadgerRepository(cfg.Storage.Path, log)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed to initialize database: %v", err), ExitGeneralError)
	}

	rt := &runtime{cfg: cfg, log: log, repo: repo}

	status := source.NewStatusBoard()
	adapters := source.DefaultAdapters(cfg.Sources, status, time.Now, log)
	agg := aggregator.New(adapters, status, time.Now, log)
	agg.OnStatusChange = func(snapshot map[domain.Platform]domain.PlatformStatus) {
		for _, p := range domain.AllPlatforms {
			if !snapshot[p].Online {
				log.WithField("platform", p).Warn("Platform offline after refresh")
			}
		}
	}

	prefs := app.LoadPreferences(c.Context, repo, log)

	var svc *app.Service
	notifier, err := rt.buildNotifier(func() []domain.Contest { return svc.Upcoming() })
	if err != nil {
		rt.Close()
		return nil, cli.Exit(fmt.Sprintf("Failed to initialize notifier: %v", err), ExitGeneralError)
	}

	var fired notify.FiredStore
	if cfg.Notifications.Dedup {
		fired = repo
	}
	scheduler := notify.NewScheduler(prefs, fired, notify.NewDispatcher(notifier, log), time.Local, log)

	svc = app.NewService(app.Options{
		Fetcher:        agg,
		Status:         status,
		Scanner:        scheduler,
		Repository:     repo,
		Preferences:    prefs,
		Clock:          time.Now,
		RefreshTimeout: cfg.Sources.Timeout + 5*time.Second,
	}, log)
	rt.svc = svc
	return rt, nil
}

// buildNotifier returns nil when notifications are switched off.
func (rt *runtime) buildNotifier(upcoming notify.UpcomingFunc) (notify.Notifier, error) {
	switch rt.cfg.Notifications.Notifier {
	case "console":
		return notify.NewConsoleNotifier(os.Stdout), nil
	case "telegram":
		tn, err := notify.NewTelegramNotifier(rt.cfg.Telegram.BotToken, rt.cfg.Telegram.ChatID, upcoming, rt.log)
		if err != nil {
			return nil, err
		}
		rt.telegram = tn
		return tn, nil
	default:
		return nil, nil
	}
}

// refresh loads every source, mapping a failed load to its exit code.
func (rt *runtime) refresh(ctx context.Context) error {
	if _, err := rt.svc.Refresh(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load contests: %v", err), ExitSourceError)
	}
	return nil
}

func (rt *runtime) Close() {
	if err := rt.repo.Close(); err != nil {
		rt.log.WithError(err).Error("Error closing database")
	}
}
