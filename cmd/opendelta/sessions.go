package main

import (
	"fmt"
	"os"

	"github.com/opendelta/opendelta/internal/session"
)

// runListSessions prints recent session ids, newest first.
func runListSessions(limit int) error {
	store, err := session.NewStore()
	if err != nil {
		return err
	}
	ids, err := store.ListSessions(limit)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "no saved sessions")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(os.Stdout, id)
	}
	return nil
}

// runShowSession prints a saved transcript, one JSON record per line.
func runShowSession(sessionID string) error {
	store, err := session.NewStore()
	if err != nil {
		return err
	}
	records, err := store.Load(sessionID)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no transcript for session %s", sessionID)
		}
		return fmt.Errorf("load transcript: %w", err)
	}
	for _, record := range records {
		fmt.Fprintln(os.Stdout, string(record))
	}
	return nil
}
