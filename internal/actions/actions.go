// Package actions runs the destructive board actions. Each one asks for
// confirmation first and, when approved, posts to the resource's delete
// endpoint and swaps the main content with the response.
package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// ErrCancelled is returned when the user declines the confirmation.
var ErrCancelled = errors.New("action cancelled")

// Submitter sends a fragment request and applies its response.
type Submitter interface {
	Submit(ctx context.Context, method, path string, form url.Values, target string) ([]models.FeedbackSignal, error)
}

// EventLogger records confirmed and cancelled actions.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Service runs confirmed actions against the page.
type Service struct {
	page    Submitter
	confirm Confirmer
	target  string
	log     logrus.FieldLogger
	events  EventLogger
}

// Option configures a Service.
type Option func(*Service)

// WithTarget sets the element id swapped with the response.
func WithTarget(id string) Option {
	return func(s *Service) { s.target = id }
}

// WithLogger sets the structured logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithEventLog records action events.
func WithEventLog(e EventLogger) Option {
	return func(s *Service) { s.events = e }
}

// New creates a Service.
func New(page Submitter, confirm Confirmer, opts ...Option) *Service {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &Service{page: page, confirm: confirm, log: discard}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeleteLane deletes a lane after confirmation.
func (s *Service) DeleteLane(ctx context.Context, laneID, name string) ([]models.FeedbackSignal, error) {
	return s.run(ctx, "delete_lane", DeleteLaneText(name), "/lanes/"+url.PathEscape(laneID)+"/delete")
}

// DeleteProject deletes a project, addressed by name, after confirmation.
func (s *Service) DeleteProject(ctx context.Context, name string) ([]models.FeedbackSignal, error) {
	return s.run(ctx, "delete_project", DeleteProjectText(name), "/projects/"+url.PathEscape(name)+"/delete")
}

// DeleteTask deletes a task after confirmation.
func (s *Service) DeleteTask(ctx context.Context, taskID, name string) ([]models.FeedbackSignal, error) {
	return s.run(ctx, "delete_task", DeleteTaskText(name), "/tasks/"+url.PathEscape(taskID)+"/delete")
}

// RemoveMember removes a user from a project after confirmation.
func (s *Service) RemoveMember(ctx context.Context, project, userID, userName string) ([]models.FeedbackSignal, error) {
	path := "/projects/" + url.PathEscape(project) + "/members/" + url.PathEscape(userID) + "/remove"
	return s.run(ctx, "remove_member", RemoveMemberText(userName), path)
}

func (s *Service) run(ctx context.Context, action, question, path string) ([]models.FeedbackSignal, error) {
	entry := s.log.WithFields(logrus.Fields{"action": action, "path": path})

	ok, err := s.confirm.Confirm(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("confirming %s: %w", action, err)
	}
	if !ok {
		entry.Debug("action cancelled")
		s.logEvent("action.cancelled", action, path)
		return nil, ErrCancelled
	}

	s.logEvent("action.confirmed", action, path)
	signals, err := s.page.Submit(ctx, http.MethodPost, path, url.Values{}, s.target)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", action, err)
	}
	entry.WithField("signals", len(signals)).Info("action completed")
	return signals, nil
}

func (s *Service) logEvent(eventType, action, path string) {
	if s.events == nil {
		return
	}
	_ = s.events.LogEvent(eventType, map[string]any{"action": action, "path": path})
}

// DeleteLaneText is the confirmation question for deleting a lane.
func DeleteLaneText(name string) string { return "確定要刪除「" + name + "」該泳道嗎？" }

// DeleteProjectText is the confirmation question for deleting a project.
func DeleteProjectText(name string) string { return "確定要刪除「" + name + "」專案嗎？" }

// DeleteTaskText is the confirmation question for deleting a task.
func DeleteTaskText(name string) string { return "確定要刪除「" + name + "」該任務嗎？" }

// RemoveMemberText is the confirmation question for removing a member.
func RemoveMemberText(name string) string { return "確定要將「" + name + "」移出專案嗎？" }
