package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jeterchen1226/fastapi-trello/internal/notify"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// printSignals writes each feedback signal as "title: message" in the order
// it was shown.
func printSignals(w io.Writer, signals []models.FeedbackSignal) {
	for _, sig := range signals {
		a := notify.SignalAlert(sig)
		fmt.Fprintf(w, "%s: %s\n", a.Title, a.Body)
	}
}

// openPage loads path, or the page saved with the session when path is
// empty, and prints the feedback the load produced.
func openPage(ctx context.Context, w io.Writer, path string) error {
	if Page == nil {
		return fmt.Errorf("page not initialized")
	}
	if path == "" && Sessions != nil && Config != nil {
		path = Sessions.Location(Config.Server.URL)
	}
	if path == "" {
		return fmt.Errorf("no page open: pass --page or run 'board open <path>' first")
	}
	signals, err := Page.Navigate(ctx, path)
	if err != nil {
		return err
	}
	printSignals(w, signals)
	return nil
}

// persist saves the session after a command that talked to the server.
func persist() error {
	if SaveSession == nil {
		return nil
	}
	if err := SaveSession(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// failed reports whether any signal is an error.
func failed(signals []models.FeedbackSignal) bool {
	for _, s := range signals {
		if s.Severity == models.SeverityError {
			return true
		}
	}
	return false
}
