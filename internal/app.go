// Package internal provides the App struct that wires all components of the
// board client together and initializes the CLI layer.
package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/jeterchen1226/fastapi-trello/internal/actions"
	"github.com/jeterchen1226/fastapi-trello/internal/board"
	"github.com/jeterchen1226/fastapi-trello/internal/cli"
	"github.com/jeterchen1226/fastapi-trello/internal/core"
	"github.com/jeterchen1226/fastapi-trello/internal/notify"
	"github.com/jeterchen1226/fastapi-trello/internal/observability"
	"github.com/jeterchen1226/fastapi-trello/internal/page"
	"github.com/jeterchen1226/fastapi-trello/internal/reorder"
	"github.com/jeterchen1226/fastapi-trello/internal/storage"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// App holds all service dependencies of the board client.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.BoardConfig
	Logger    *log.Logger

	// Session and transport
	Sessions storage.SessionManager
	Client   board.Client

	// Feedback and page
	Slot     *notify.Slot
	Arbiter  *notify.Arbiter
	Page     *page.Page
	Pipeline *reorder.Pipeline

	// Observability
	EventLog    observability.EventLog
	Recorder    *observability.Recorder
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier

	logFile *os.File
}

// NewApp creates and wires all components of the board client.
// basePath is the directory holding .boardconfig, the event log and the
// saved session.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Logging ---
	app.Logger = log.New()
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.WarnLevel
	}
	app.Logger.SetLevel(level)
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		app.logFile = f
		app.Logger.SetOutput(f)
		app.Logger.SetFormatter(&log.JSONFormatter{})
	} else {
		app.Logger.SetOutput(os.Stderr)
	}

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(cfg.EventsPath)
	if err != nil {
		// Non-fatal: run without an event log.
		app.Logger.WithError(err).Warn("event log disabled")
		app.EventLog = nil
	}
	if app.EventLog != nil {
		app.Recorder = &observability.Recorder{Log: app.EventLog}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, observability.DefaultAlertThresholds())
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.WebhookURL != "" {
		app.Notifier = observability.NewWebhookNotifier(cfg.WebhookURL)
	}

	// --- Session and transport ---
	app.Sessions = storage.NewSessionManager(basePath)
	if err := app.Sessions.Load(); err != nil {
		app.Logger.WithError(err).Warn("ignoring saved session")
		app.Sessions.Clear()
	}

	app.Client, err = board.NewClient(board.Config{
		BaseURL:    cfg.Server.URL,
		Timeout:    cfg.Server.Timeout,
		CSRFHeader: cfg.Markup.CSRFHeader,
		Logger:     app.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating board client: %w", err)
	}
	for name, value := range app.Sessions.Cookies(cfg.Server.URL) {
		app.Client.Cookies().Set(name, value)
	}

	// --- Feedback, page and reorder pipeline ---
	app.Slot = notify.NewSlot()
	arbOpts := []notify.Option{
		notify.WithPolicy(cfg.Policy),
		notify.WithLogger(app.Logger),
	}
	pipeOpts := []reorder.Option{
		reorder.WithLogger(app.Logger),
		reorder.WithMarkerID(cfg.Markup.MarkerID),
	}
	if app.Recorder != nil {
		arbOpts = append(arbOpts, notify.WithEventLog(app.Recorder))
		pipeOpts = append(pipeOpts, reorder.WithEventLog(app.Recorder))
	}
	if app.Notifier != nil {
		arbOpts = append(arbOpts, notify.WithNotifier(app.Notifier))
	}
	app.Arbiter = notify.NewArbiter(app.Slot, cfg.Markup, arbOpts...)
	app.Page = page.New(app.Client, app.Arbiter, cfg.Markup, app.Logger)
	app.Pipeline = reorder.New(app.Page, app.Client, app.Arbiter, pipeOpts...)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.ConfigMgr = app.ConfigMgr
	cli.Logger = app.Logger
	cli.Sessions = app.Sessions
	cli.Client = app.Client
	cli.Slot = app.Slot
	cli.Page = app.Page
	cli.Pipeline = app.Pipeline
	cli.NewActions = app.NewActions
	cli.SaveSession = app.SaveSession
	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// NewActions builds the destructive-action service with the given
// confirmation source.
func (a *App) NewActions(confirm actions.Confirmer) *actions.Service {
	opts := []actions.Option{
		actions.WithTarget(a.Config.Markup.SwapTarget),
		actions.WithLogger(a.Logger),
	}
	if a.Recorder != nil {
		opts = append(opts, actions.WithEventLog(a.Recorder))
	}
	return actions.New(a.Page, confirm, opts...)
}

// SaveSession stores the client cookies and page location so the next
// invocation resumes the same login.
func (a *App) SaveSession() error {
	location := ""
	if loc := a.Page.Location(); loc != nil {
		location = loc.RequestURI()
	}
	a.Sessions.Update(a.Config.Server.URL, location, a.Client.Cookies().All())
	return a.Sessions.Save()
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	a.Pipeline.Wait()
	a.Arbiter.Wait()
	var err error
	if a.EventLog != nil {
		err = a.EventLog.Close()
	}
	if a.logFile != nil {
		a.Logger.SetOutput(io.Discard)
		if cerr := a.logFile.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ResolveBasePath determines the base directory of the board client. It
// checks the BOARD_HOME env var, then walks up from the current directory
// looking for .boardconfig, then falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("BOARD_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}
