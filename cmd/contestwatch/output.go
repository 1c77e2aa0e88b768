package main

import (
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"contestwatch/internal/app"
	"contestwatch/internal/domain"
)

const startLayout = "Mon 02 Jan 15:04"

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderContests(w io.Writer, contests []domain.Contest, reminders domain.ReminderSet, loc *time.Location) {
	if len(contests) == 0 {
		_, _ = io.WriteString(w, "No contests found\n")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Platform", "Type", "Starts", "Duration", "Reminder"})
	for _, c := range contests {
		mark := ""
		if reminders[c.ID] {
			mark = "yes"
		}
		t.AppendRow(table.Row{
			c.ID, c.Name, c.Platform, c.Type,
			c.StartTime.In(loc).Format(startLayout),
			domain.FormatDuration(c.Duration),
			mark,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(contests)})
	t.Render()
}

func renderStatus(w io.Writer, st app.Status, loc *time.Location) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Platform", "Status", "Last Checked"})
	for _, p := range domain.AllPlatforms {
		ps := st.Platforms[p]
		state := "offline"
		if ps.Online {
			state = "online"
		}
		checked := "never"
		if ps.LastChecked != nil {
			checked = ps.LastChecked.In(loc).Format("15:04:05")
		}
		t.AppendRow(table.Row{p, state, checked})
	}
	t.Render()
}

func renderReminders(w io.Writer, reminders []app.Reminder, loc *time.Location) {
	if len(reminders) == 0 {
		_, _ = io.WriteString(w, "No reminders set\n")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Starts"})
	for _, r := range reminders {
		if r.Contest == nil {
			t.AppendRow(table.Row{r.ContestID, "(no longer listed)", ""})
			continue
		}
		t.AppendRow(table.Row{r.ContestID, r.Contest.Name, r.Contest.StartTime.In(loc).Format(startLayout)})
	}
	t.Render()
}

func renderPreferences(w io.Writer, prefs domain.NotificationPreferences) {
	times := make([]string, 0, len(prefs.LeadTimes))
	for _, m := range prefs.LeadTimes {
		times = append(times, domain.FormatDuration(int64(m)*60))
	}
	platforms := make([]string, 0, len(prefs.Platforms))
	for _, p := range prefs.Platforms {
		platforms = append(platforms, string(p))
	}

	t := newTable(w)
	t.AppendRow(table.Row{"Enabled", prefs.Enabled})
	t.AppendRow(table.Row{"Lead times", strings.Join(times, ", ")})
	t.AppendRow(table.Row{"Platforms", strings.Join(platforms, ", ")})
	t.Render()
}
