package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"posestream/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/posestream.db", "Database path")
	limit := flag.Int("limit", 20, "Number of sessions to list")
	id := flag.String("id", "", "Show the connections of one session")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatalf("Database not found: %v", err)
	}
	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	sessions := sqlite.NewSessionRepository(db)
	connections := sqlite.NewConnectionRepository(db)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if *id != "" {
		s, err := sessions.GetByID(*id)
		if err != nil {
			log.Fatalf("Failed to load session: %v", err)
		}
		conns, err := connections.ListBySession(s.ID)
		if err != nil {
			log.Fatalf("Failed to load connections: %v", err)
		}
		fmt.Printf("Session %s (%s, %s): %d frames, %d messages, %s\n\n",
			s.ID, s.Source, s.Transports, s.Frames, s.Messages, endedText(s.EndedAt, s.EndReason))
		fmt.Fprintln(w, "TRANSPORT\tREMOTE\tCONNECTED\tDURATION\tSENT")
		for _, c := range conns {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", c.Transport, c.RemoteAddr,
				c.ConnectedAt.Format(time.DateTime), c.DisconnectedAt.Sub(c.ConnectedAt).Round(time.Millisecond), c.MessagesSent)
		}
		return
	}

	list, err := sessions.List(*limit)
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("No sessions recorded")
		return
	}
	fmt.Fprintln(w, "ID\tSOURCE\tTRANSPORTS\tSTARTED\tFRAMES\tMESSAGES\tCLIENTS\tEND")
	for _, s := range list {
		clients, err := connections.CountBySession(s.ID)
		if err != nil {
			log.Fatalf("Failed to count connections: %v", err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n", s.ID, s.Source, s.Transports,
			s.StartedAt.Format(time.DateTime), s.Frames, s.Messages, clients, endedText(s.EndedAt, s.EndReason))
	}
}

func endedText(endedAt *time.Time, reason string) string {
	if endedAt == nil {
		return "running"
	}
	return reason
}
