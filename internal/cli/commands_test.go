package cli

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"github.com/jeterchen1226/fastapi-trello/internal/boardtest"
	"github.com/jeterchen1226/fastapi-trello/internal/observability"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

func resetMoveFlags() {
	movePage, moveToLane, moveProject, moveIndex = "", "", "", 0
}

func resetDeleteFlags() {
	deleteYes, deletePage, memberName = false, "", ""
}

// --- login / logout / open ---

func TestLoginCmd_SavesSession(t *testing.T) {
	env := setupCLI(t)
	loginPassword = boardtest.Password
	defer func() { loginPassword = "" }()

	out, err := runCmd(t, loginCmd, "", boardtest.Username)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "成功: 歡迎回來，Ada。") {
		t.Errorf("output = %q", out)
	}
	if env.saves != 1 {
		t.Errorf("saves = %d, want 1", env.saves)
	}
	if got := env.sessions.Location(env.srv.URL); got != "/projects" {
		t.Errorf("saved location = %q, want /projects", got)
	}
	if _, ok := env.sessions.Cookies(env.srv.URL)["access_token"]; !ok {
		t.Error("expected the auth cookie in the saved session")
	}
}

func TestLoginCmd_BadPassword(t *testing.T) {
	env := setupCLI(t)
	loginPassword = "wrong"
	defer func() { loginPassword = "" }()

	out, err := runCmd(t, loginCmd, "", boardtest.Username)
	if err == nil || !strings.Contains(err.Error(), "login failed") {
		t.Fatalf("expected login failed, got %v", err)
	}
	if !strings.Contains(out, "錯誤: 帳號或密碼錯誤") {
		t.Errorf("output = %q", out)
	}
	if env.saves != 0 {
		t.Error("a failed login must not be saved")
	}
}

func TestLoginCmd_PasswordRequired(t *testing.T) {
	setupCLI(t)
	t.Setenv("BOARD_PASSWORD", "")

	_, err := runCmd(t, loginCmd, "", boardtest.Username)
	if err == nil || !strings.Contains(err.Error(), "password required") {
		t.Fatalf("expected password error, got %v", err)
	}
}

func TestLoginCmd_PasswordFromEnv(t *testing.T) {
	setupCLI(t)
	t.Setenv("BOARD_PASSWORD", boardtest.Password)

	if _, err := runCmd(t, loginCmd, "", boardtest.Username); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogoutCmd_ClearsSession(t *testing.T) {
	env := setupCLI(t)
	env.sessions.Update(env.srv.URL, "/projects/1", map[string]string{"access_token": "x"})
	if err := env.sessions.Save(); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, logoutCmd, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "登出成功。") {
		t.Errorf("output = %q", out)
	}
	if got := env.sessions.Location(env.srv.URL); got != "" {
		t.Errorf("location survived logout: %q", got)
	}
}

func TestOpenCmd_BecomesDefaultPage(t *testing.T) {
	env := setupCLI(t)

	if _, err := runCmd(t, openCmd, "", env.srv.ProjectPath()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := env.sessions.Location(env.srv.URL); got != env.srv.ProjectPath() {
		t.Errorf("saved location = %q", got)
	}
}

func TestOpenPage_NoSavedPage(t *testing.T) {
	setupCLI(t)
	resetMoveFlags()

	_, err := runCmd(t, moveTaskCmd, "", "101")
	if err == nil || !strings.Contains(err.Error(), "no page open") {
		t.Fatalf("expected no page error, got %v", err)
	}
}

// --- move ---

func TestMoveTaskCmd_AcrossLanes(t *testing.T) {
	env := setupCLI(t)
	resetMoveFlags()
	defer resetMoveFlags()
	movePage, moveToLane, moveIndex = env.srv.ProjectPath(), "3", 0

	out, err := runCmd(t, moveTaskCmd, "", "101")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "任務位置已更新") {
		t.Errorf("output = %q", out)
	}

	lanes := env.srv.Board().Lanes
	if len(lanes[2].Tasks) != 1 || lanes[2].Tasks[0].ID != "101" {
		t.Errorf("server lane 3 = %v", lanes[2].Tasks)
	}
	if got := Page.Board().Lanes[2].Tasks; len(got) != 1 || got[0].ID != "101" {
		t.Errorf("page lane 3 = %v", got)
	}

	events, err := env.events.Read(observability.EventFilter{Type: "reorder.committed"})
	if err != nil || len(events) != 1 {
		t.Fatalf("reorder.committed events = %d (%v)", len(events), err)
	}
}

func TestMoveTaskCmd_DefaultsToOwnLane(t *testing.T) {
	env := setupCLI(t)
	resetMoveFlags()
	defer resetMoveFlags()
	movePage, moveIndex = env.srv.ProjectPath(), 1

	if _, err := runCmd(t, moveTaskCmd, "", "101"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tasks := env.srv.Board().Lanes[0].Tasks
	if len(tasks) != 2 || tasks[0].ID != "102" || tasks[1].ID != "101" {
		t.Errorf("server lane 1 = %v", tasks)
	}
}

func TestMoveTaskCmd_ServerRejects(t *testing.T) {
	env := setupCLI(t)
	resetMoveFlags()
	defer resetMoveFlags()
	movePage, moveToLane = env.srv.ProjectPath(), "2"
	env.srv.Fail("/tasks/101/position", boardtest.Failure{Status: http.StatusBadRequest, Body: "lane is locked"})

	out, err := runCmd(t, moveTaskCmd, "", "101")
	if err == nil {
		t.Fatal("expected an error for a rejected move")
	}
	if !strings.Contains(out, "錯誤: 更新任務位置失敗：lane is locked") {
		t.Errorf("output = %q", out)
	}
	if env.saves != 1 {
		t.Errorf("session should still be saved, saves = %d", env.saves)
	}
}

func TestMoveTaskCmd_UnknownTask(t *testing.T) {
	env := setupCLI(t)
	resetMoveFlags()
	defer resetMoveFlags()
	movePage = env.srv.ProjectPath()

	_, err := runCmd(t, moveTaskCmd, "", "999")
	if err == nil || !strings.Contains(err.Error(), "not on the page") {
		t.Fatalf("expected not on the page, got %v", err)
	}
}

func TestMoveTaskCmd_NegativeIndex(t *testing.T) {
	env := setupCLI(t)
	resetMoveFlags()
	defer resetMoveFlags()
	movePage, moveIndex = env.srv.ProjectPath(), -1

	_, err := runCmd(t, moveTaskCmd, "", "101")
	if err == nil || !strings.Contains(err.Error(), "--index") {
		t.Fatalf("expected index error, got %v", err)
	}
}

func TestMoveLaneCmd(t *testing.T) {
	env := setupCLI(t)
	resetMoveFlags()
	defer resetMoveFlags()
	movePage, moveIndex = env.srv.ProjectPath(), 2

	out, err := runCmd(t, moveLaneCmd, "", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "泳道位置已更新") {
		t.Errorf("output = %q", out)
	}
	lanes := env.srv.Board().Lanes
	if lanes[2].ID != "1" {
		t.Errorf("server lane order = %v, %v, %v", lanes[0].ID, lanes[1].ID, lanes[2].ID)
	}
}

// --- delete ---

func TestDeleteTaskCmd_Yes(t *testing.T) {
	env := setupCLI(t)
	resetDeleteFlags()
	defer resetDeleteFlags()
	deleteYes, deletePage = true, env.srv.ProjectPath()

	out, err := runCmd(t, deleteTaskCmd, "", "101")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "成功: 任務已刪除。") {
		t.Errorf("output = %q", out)
	}
	for _, task := range env.srv.Board().Lanes[0].Tasks {
		if task.ID == "101" {
			t.Error("task 101 still on the server")
		}
	}
}

func TestDeleteLaneCmd_PromptConfirmed(t *testing.T) {
	env := setupCLI(t)
	resetDeleteFlags()
	defer resetDeleteFlags()
	deletePage = env.srv.ProjectPath()

	out, err := runCmd(t, deleteLaneCmd, "y\n", "3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "確定要刪除「完成」該泳道嗎？") {
		t.Errorf("expected the lane name in the prompt, got %q", out)
	}
	if !strings.Contains(out, "泳道已刪除。") {
		t.Errorf("output = %q", out)
	}
	if n := len(env.srv.Board().Lanes); n != 2 {
		t.Errorf("lanes on server = %d, want 2", n)
	}
}

func TestDeleteTaskCmd_PromptDeclined(t *testing.T) {
	env := setupCLI(t)
	resetDeleteFlags()
	defer resetDeleteFlags()
	deletePage = env.srv.ProjectPath()

	out, err := runCmd(t, deleteTaskCmd, "n\n", "101")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Cancelled.") {
		t.Errorf("output = %q", out)
	}
	if _, ok := env.srv.LastRequest(http.MethodPost, "/tasks/101/delete"); ok {
		t.Error("a declined delete must not reach the server")
	}

	events, _ := env.events.Read(observability.EventFilter{Type: "action.cancelled"})
	if len(events) != 1 {
		t.Errorf("action.cancelled events = %d, want 1", len(events))
	}
}

func TestDeleteMemberCmd(t *testing.T) {
	env := setupCLI(t)
	resetDeleteFlags()
	defer resetDeleteFlags()
	deleteYes, deletePage = true, env.srv.ProjectPath()

	out, err := runCmd(t, deleteMemberCmd, "", "Demo", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "已將 Bob 移出專案。") {
		t.Errorf("output = %q", out)
	}
}

func TestNameOf(t *testing.T) {
	b := models.Board{Lanes: []models.Lane{{
		Item:  models.Item{ID: "1", Name: "待辦"},
		Tasks: []models.Item{{ID: "101", Name: "寫測試"}, {ID: "102"}},
	}}}
	tests := []struct {
		kind models.ItemKind
		id   string
		want string
	}{
		{models.KindLane, "1", "待辦"},
		{models.KindTask, "101", "寫測試"},
		{models.KindTask, "102", "102"},
		{models.KindTask, "1", "1"},
		{models.KindLane, "9", "9"},
	}
	for _, tt := range tests {
		if got := nameOf(b, tt.kind, tt.id); got != tt.want {
			t.Errorf("nameOf(%s, %s) = %q, want %q", tt.kind, tt.id, got, tt.want)
		}
	}
}

// --- snapshot / config ---

func TestSnapshotCmd(t *testing.T) {
	env := setupCLI(t)

	out, err := runCmd(t, snapshotCmd, "", env.srv.ProjectPath())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var b models.Board
	if err := yaml.Unmarshal([]byte(out), &b); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	if b.ProjectID != "1" || len(b.Lanes) != 3 || len(b.Lanes[0].Tasks) != 2 {
		t.Errorf("snapshot = %+v", b)
	}
}

func TestConfigShowCmd(t *testing.T) {
	env := setupCLI(t)

	out, err := runCmd(t, configShowCmd, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "# base: "+BasePath) {
		t.Errorf("missing base path header: %q", out)
	}
	if !strings.Contains(out, "url: "+env.srv.URL) {
		t.Errorf("missing server url: %q", out)
	}
	if !strings.Contains(out, "arbiter_policy: all") {
		t.Errorf("missing policy: %q", out)
	}
}

// --- observability commands ---

func TestStatsCmd_JSON(t *testing.T) {
	env := setupCLI(t)
	statsJSON, statsSince = true, "24h"
	defer func() { statsJSON, statsSince = false, "7d" }()

	resetMoveFlags()
	defer resetMoveFlags()
	movePage, moveToLane = env.srv.ProjectPath(), "2"
	if _, err := runCmd(t, moveTaskCmd, "", "101"); err != nil {
		t.Fatalf("move: %v", err)
	}

	out, err := runCmd(t, statsCmd, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m observability.Metrics
	if err := sonic.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if m.ReorderCommitted != 1 || m.FeedbackShown != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestStatsCmd_Table(t *testing.T) {
	setupCLI(t)
	statsJSON, statsSince = false, "7d"

	out, err := runCmd(t, statsCmd, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Reorder success rate:") {
		t.Errorf("output = %q", out)
	}
}

func TestStatsCmd_BadSince(t *testing.T) {
	setupCLI(t)
	statsSince = "soon"
	defer func() { statsSince = "7d" }()

	if _, err := runCmd(t, statsCmd, ""); err == nil {
		t.Fatal("expected an error for an invalid --since")
	}
}

func TestParseSinceDuration(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 7 * 24 * time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"1w", 0, true},
		{"xd", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSinceDuration(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseSinceDuration(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseSinceDuration(%q): %v", tt.in, err)
			continue
		}
		if diff := now.Sub(got) - tt.want; diff < -time.Minute || diff > time.Minute {
			t.Errorf("parseSinceDuration(%q) = %v ago, want %v", tt.in, now.Sub(got), tt.want)
		}
	}
}

func TestEventsCmd(t *testing.T) {
	env := setupCLI(t)
	eventsType, eventsLevel, eventsSince, eventsLimit = "", "", "", 50
	defer func() { eventsType, eventsLevel, eventsSince, eventsLimit = "", "", "", 50 }()

	out, err := runCmd(t, eventsCmd, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No events recorded.") {
		t.Errorf("output = %q", out)
	}

	rec := &observability.Recorder{Log: env.events}
	_ = rec.LogEvent("reorder.failed", map[string]any{"source": "transport", "message": "無法連線"})
	_ = rec.LogEvent("feedback.shown", map[string]any{"severity": "success", "message": "任務已刪除。"})

	eventsType = "reorder.failed"
	out, err = runCmd(t, eventsCmd, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "ERROR") || !strings.Contains(out, "無法連線") || strings.Contains(out, "任務已刪除") {
		t.Errorf("filtered output = %q", out)
	}
}

func TestEventsCmd_NilLog(t *testing.T) {
	setupCLI(t)
	EventLog = nil

	_, err := runCmd(t, eventsCmd, "")
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized, got %v", err)
	}
}
