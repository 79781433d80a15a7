package cli

import (
	log "github.com/sirupsen/logrus"

	"github.com/jeterchen1226/fastapi-trello/internal/actions"
	"github.com/jeterchen1226/fastapi-trello/internal/board"
	"github.com/jeterchen1226/fastapi-trello/internal/core"
	"github.com/jeterchen1226/fastapi-trello/internal/notify"
	"github.com/jeterchen1226/fastapi-trello/internal/observability"
	"github.com/jeterchen1226/fastapi-trello/internal/page"
	"github.com/jeterchen1226/fastapi-trello/internal/reorder"
	"github.com/jeterchen1226/fastapi-trello/internal/storage"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath  string
	Config    *models.BoardConfig
	ConfigMgr core.ConfigurationManager
	Logger    *log.Logger

	Sessions    storage.SessionManager
	SaveSession func() error
	Client      board.Client

	Slot       *notify.Slot
	Page       *page.Page
	Pipeline   *reorder.Pipeline
	NewActions func(confirm actions.Confirmer) *actions.Service
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
