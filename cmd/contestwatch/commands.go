package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/urfave/cli/v2"

	"contestwatch/internal/browser"
	"contestwatch/internal/domain"
	"contestwatch/internal/export"
	"contestwatch/internal/filter"
	"contestwatch/internal/server"
)

func criteriaFromFlags(c *cli.Context) (filter.Criteria, error) {
	criteria, err := filter.ParseCriteria(c.String("platform"), c.String("search"), c.String("range"), c.String("sort"))
	if err != nil {
		return filter.Criteria{}, cli.Exit(err.Error(), ExitUsageError)
	}
	return criteria, nil
}

func listContests(c *cli.Context) error {
	criteria, err := criteriaFromFlags(c)
	if err != nil {
		return err
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.refresh(c.Context); err != nil {
		return err
	}
	contests := rt.svc.View(c.Context, criteria)

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(contests)
	}

	reminders := rt.repo.LoadReminders(c.Context)
	renderContests(os.Stdout, contests, reminders, time.Local)
	return nil
}

func showStatus(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.refresh(c.Context); err != nil {
		return err
	}
	renderStatus(os.Stdout, rt.svc.Status(), time.Local)
	return nil
}

func watch(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Create context that listens for interrupt signals
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt.log.Info("Starting contestwatch...")

	var wg conc.WaitGroup
	wg.Go(func() {
		rt.svc.Run(ctx, rt.cfg.Refresh.Interval, rt.cfg.Refresh.ScanInterval)
	})
	wg.Go(func() {
		rt.repo.RunGC(ctx, 10*time.Minute)
	})
	if rt.telegram != nil {
		wg.Go(func() {
			rt.telegram.Start(ctx)
		})
	}

	srv := server.New(rt.svc, rt.log)
	srvErr := srv.Start(ctx, rt.cfg.HTTP.Addr)
	if srvErr != nil {
		rt.log.WithError(srvErr).Error("HTTP server stopped with error")
		stop()
	}

	wg.Wait()
	rt.log.Info("contestwatch shut down gracefully.")
	return srvErr
}

func contestIDArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit("Exactly one contest id is required", ExitUsageError)
	}
	return c.Args().First(), nil
}

func toggleReminder(c *cli.Context) error {
	id, err := contestIDArg(c)
	if err != nil {
		return err
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.refresh(c.Context); err != nil {
		return err
	}
	on, err := rt.svc.ToggleReminder(c.Context, id)
	if errors.Is(err, domain.ErrContestNotFound) {
		return cli.Exit(fmt.Sprintf("No upcoming contest with id %q", id), ExitUsageError)
	}
	if err != nil {
		return err
	}

	if on {
		fmt.Printf("Reminder set for %s\n", id)
	} else {
		fmt.Printf("Reminder removed for %s\n", id)
	}
	return nil
}

func listReminders(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.refresh(c.Context); err != nil {
		return err
	}

	if c.Bool("prune") {
		removed, err := rt.svc.PruneReminders(c.Context)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d stale reminder(s)\n", removed)
	}

	renderReminders(os.Stdout, rt.svc.Reminders(c.Context), time.Local)
	return nil
}

func showPreferences(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	renderPreferences(os.Stdout, rt.svc.Preferences())
	return nil
}

func setPreferences(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	prefs := rt.svc.Preferences()
	if c.IsSet("enabled") {
		prefs.Enabled = c.Bool("enabled")
	}
	if c.IsSet("times") {
		prefs.LeadTimes = c.IntSlice("times")
	}
	if c.IsSet("platforms") {
		platforms := make([]domain.Platform, 0, len(c.StringSlice("platforms")))
		for _, raw := range c.StringSlice("platforms") {
			p, err := domain.ParsePlatform(raw)
			if err != nil {
				return cli.Exit(err.Error(), ExitUsageError)
			}
			platforms = append(platforms, p)
		}
		prefs.Platforms = platforms
	}

	saved, err := rt.svc.SavePreferences(c.Context, prefs)
	if err != nil {
		return err
	}
	renderPreferences(os.Stdout, saved)
	return nil
}

func openContest(c *cli.Context) error {
	id, err := contestIDArg(c)
	if err != nil {
		return err
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.refresh(c.Context); err != nil {
		return err
	}
	contest, err := rt.svc.Contest(id)
	if err != nil {
		return cli.Exit(fmt.Sprintf("No upcoming contest with id %q", id), ExitUsageError)
	}
	return browser.NewOpener(rt.log).OpenContest(contest)
}

func printFeed(c *cli.Context) error {
	criteria, err := criteriaFromFlags(c)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(c.String("format"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.refresh(c.Context); err != nil {
		return err
	}
	feed := export.BuildFeed(rt.svc.View(c.Context, criteria), feedBaseURL(rt.cfg.HTTP.Addr), time.Now())
	out, err := export.Render(feed, format)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// feedBaseURL points the feed's channel link at the local API.
func feedBaseURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
