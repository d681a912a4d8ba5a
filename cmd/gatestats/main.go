// gatestats inspects a measurement log produced by gateserver: it lists
// recorded sessions or prints per-coordinate outcome statistics for one.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spinwave-labs/gatelink/internal/storage/sqlite"
)

var (
	dbPath        = flag.String("db", "measurements.db", "Measurement log database path")
	session       = flag.String("session", "", "Session ID to summarize (empty lists sessions)")
	migrateAction = flag.String("migrate", "", "Run a schema migration action (up, down, version) and exit")
	migrationsDir = flag.String("migrations", "migrations", "Schema migrations directory")
)

func main() {
	flag.Parse()

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open measurement log: %v", err)
	}
	defer store.Close()

	if *migrateAction != "" {
		runMigrate(store, *migrateAction, *migrationsDir)
		return
	}

	if *session == "" {
		listSessions(store)
		return
	}
	summarize(store, *session)
}

func runMigrate(store *sqlite.Store, action, dir string) {
	switch action {
	case "up":
		if err := store.MigrateUp(dir); err != nil {
			log.Fatalf("migration up failed: %v", err)
		}
		log.Print("migrations applied")
	case "down":
		if err := store.MigrateDown(dir); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
		log.Print("migration rolled back")
	case "version":
		version, dirty, err := store.MigrateVersion(dir)
		if err != nil {
			log.Fatalf("failed to read schema version: %v", err)
		}
		fmt.Printf("schema version %d (dirty: %v)\n", version, dirty)
	default:
		log.Fatalf("unknown migrate action %q (want up, down, or version)", action)
	}
}

func listSessions(store *sqlite.Store) {
	sessions, err := store.ListSessions()
	if err != nil {
		log.Fatalf("failed to list sessions: %v", err)
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tGRID\tSEED\tMEASUREMENTS\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%dx%d\t%d\t%d\t%s\n",
			s.ID, s.GridW, s.GridH, s.Seed, s.Measurements,
			s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

func summarize(store *sqlite.Store, sessionID string) {
	summary, err := store.SessionSummary(sessionID)
	if err != nil {
		log.Fatalf("failed to summarize session: %v", err)
	}
	if len(summary) == 0 {
		fmt.Println("no measurements in session")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COORD\tCOUNT\tMEAN\tVARIANCE")
	for _, s := range summary {
		fmt.Fprintf(w, "%s\t%d\t%.4f\t%.4f\n", s.Coord, s.Count, s.Mean, s.Variance)
	}
	w.Flush()
}
