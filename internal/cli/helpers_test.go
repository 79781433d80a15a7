package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jeterchen1226/fastapi-trello/internal/actions"
	"github.com/jeterchen1226/fastapi-trello/internal/board"
	"github.com/jeterchen1226/fastapi-trello/internal/boardtest"
	"github.com/jeterchen1226/fastapi-trello/internal/core"
	"github.com/jeterchen1226/fastapi-trello/internal/notify"
	"github.com/jeterchen1226/fastapi-trello/internal/observability"
	"github.com/jeterchen1226/fastapi-trello/internal/page"
	"github.com/jeterchen1226/fastapi-trello/internal/reorder"
	"github.com/jeterchen1226/fastapi-trello/internal/storage"
)

// cliEnv is a fake board server wired into the package-level services the
// same way app.go wires the real ones.
type cliEnv struct {
	srv      *boardtest.Server
	sessions storage.SessionManager
	events   observability.EventLog
	saves    int
}

func setupCLI(t *testing.T) *cliEnv {
	t.Helper()

	origBase, origConfig, origLogger := BasePath, Config, Logger
	origSessions, origSave, origClient := Sessions, SaveSession, Client
	origSlot, origPage, origPipeline, origActions := Slot, Page, Pipeline, NewActions
	origEvents, origAlerts, origMetrics, origNotifier := EventLog, AlertEngine, MetricsCalc, Notifier
	t.Cleanup(func() {
		BasePath, Config, Logger = origBase, origConfig, origLogger
		Sessions, SaveSession, Client = origSessions, origSave, origClient
		Slot, Page, Pipeline, NewActions = origSlot, origPage, origPipeline, origActions
		EventLog, AlertEngine, MetricsCalc, Notifier = origEvents, origAlerts, origMetrics, origNotifier
	})

	dir := t.TempDir()
	srv := boardtest.New(t)
	env := &cliEnv{srv: srv}

	cfg := core.DefaultConfig(dir)
	cfg.Server.URL = srv.URL
	cfg.Server.Timeout = 2 * time.Second

	logger := log.New()
	logger.SetOutput(io.Discard)

	events, err := observability.NewJSONLEventLog(cfg.EventsPath)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = events.Close() })
	env.events = events
	recorder := &observability.Recorder{Log: events}

	client, err := board.NewClient(board.Config{BaseURL: srv.URL, Timeout: cfg.Server.Timeout, Logger: logger})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	slot := notify.NewSlot()
	arb := notify.NewArbiter(slot, cfg.Markup, notify.WithLogger(logger), notify.WithEventLog(recorder))
	p := page.New(client, arb, cfg.Markup, logger)
	pipe := reorder.New(p, client, arb, reorder.WithLogger(logger), reorder.WithEventLog(recorder))

	env.sessions = storage.NewSessionManager(dir)

	BasePath = dir
	Config = cfg
	Logger = logger
	Sessions = env.sessions
	Client = client
	Slot = slot
	Page = p
	Pipeline = pipe
	NewActions = func(confirm actions.Confirmer) *actions.Service {
		return actions.New(p, confirm, actions.WithTarget(cfg.Markup.SwapTarget), actions.WithEventLog(recorder))
	}
	SaveSession = func() error {
		env.saves++
		loc := ""
		if l := p.Location(); l != nil {
			loc = l.RequestURI()
		}
		env.sessions.Update(cfg.Server.URL, loc, client.Cookies().All())
		return env.sessions.Save()
	}
	EventLog = events
	AlertEngine = observability.NewAlertEngine(events, observability.DefaultAlertThresholds())
	MetricsCalc = observability.NewMetricsCalculator(events)
	Notifier = nil

	return env
}

// runCmd executes cmd's RunE with captured output and the given stdin.
func runCmd(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
		cmd.SetIn(nil)
	})
	err := cmd.RunE(cmd, args)
	return out.String(), err
}
