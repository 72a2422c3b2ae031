// Package main renders an HTML report for a recorded pipeline session: a
// scatter of detection triggers over time, split by command kind and by
// whether the detection was actually emitted.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/gazelink-data/gazelink/internal/config"
	"github.com/gazelink-data/gazelink/internal/db"
)

var (
	dbPath    = flag.String("db", config.DefaultDatabasePath, "SQLite database path")
	sessionID = flag.String("session", "", "Session ID (defaults to the most recent session)")
	outPath   = flag.String("out", "session-report.html", "Output HTML file")
	list      = flag.Bool("list", false, "List recorded sessions and exit")
)

// pickSession selects the session to report on. Store.Sessions returns
// newest first, so an empty ID picks the most recent session.
func pickSession(sessions []db.Session, id string) (db.Session, error) {
	if id == "" {
		return sessions[0], nil
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return db.Session{}, fmt.Errorf("session %s not found", id)
}

func main() {
	flag.Parse()

	store, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		log.Fatalf("failed to list sessions: %v", err)
	}
	if len(sessions) == 0 {
		log.Fatal("no sessions recorded")
	}

	if *list {
		for _, s := range sessions {
			fmt.Printf("%s\t%s\t%d channels @ %.0f Hz\n",
				s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), s.Channels, s.SampleRate)
		}
		return
	}

	session, err := pickSession(sessions, *sessionID)
	if err != nil {
		log.Fatal(err)
	}

	events, err := store.EventsForSession(session.ID)
	if err != nil {
		log.Fatalf("failed to load events: %v", err)
	}
	if len(events) == 0 {
		log.Fatalf("session %s has no events", session.ID)
	}

	// One series per (kind, emitted) pair so suppressed detections are
	// visually distinct from delivered commands.
	series := map[string][]opts.ScatterData{}
	for _, e := range events {
		name := e.Kind
		if !e.Emitted {
			name = fmt.Sprintf("%s (%s)", e.Kind, e.Reason)
		}
		secs := e.At.Sub(session.StartedAt).Seconds()
		series[name] = append(series[name], opts.ScatterData{
			Value: []interface{}{secs, e.Trigger},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Session Report",
			Width:     "1200px",
			Height:    "700px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Detection triggers",
			Subtitle: fmt.Sprintf("session=%s started=%s events=%d", session.ID, session.StartedAt.Format("2006-01-02 15:04:05"), len(events)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "seconds since start", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "trigger", NameLocation: "middle", NameGap: 40}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	for name, data := range series {
		scatter.AddSeries(name, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("failed to create %s: %v", *outPath, err)
	}
	defer f.Close()
	if err := scatter.Render(f); err != nil {
		log.Fatalf("failed to render chart: %v", err)
	}
	log.Printf("wrote %s", *outPath)
}
