package page_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jeterchen1226/fastapi-trello/internal/board"
	"github.com/jeterchen1226/fastapi-trello/internal/boardtest"
	"github.com/jeterchen1226/fastapi-trello/internal/notify"
	"github.com/jeterchen1226/fastapi-trello/internal/page"
	"github.com/jeterchen1226/fastapi-trello/internal/reorder"
	"github.com/jeterchen1226/fastapi-trello/internal/view"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

type harness struct {
	srv     *boardtest.Server
	page    *page.Page
	slot    *notify.Slot
	arbiter *notify.Arbiter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := boardtest.New(t)
	client, err := board.NewClient(board.Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	slot := notify.NewSlot()
	markup := models.DefaultMarkup()
	arb := notify.NewArbiter(slot, markup)
	return &harness{srv: srv, page: page.New(client, arb, markup, nil), slot: slot, arbiter: arb}
}

func messages(alerts []notify.Alert) []string {
	var out []string
	for _, a := range alerts {
		out = append(out, a.Body)
	}
	return out
}

func TestLogin_QueryChannelShownOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.page.Login(ctx, boardtest.Username, boardtest.Password); err != nil {
		t.Fatalf("login: %v", err)
	}
	alerts := h.slot.Drain()
	if len(alerts) != 1 || alerts[0].Body != "歡迎回來，Ada。" || alerts[0].Title != notify.TitleSuccess {
		t.Fatalf("alerts = %v", messages(alerts))
	}
	loc := h.page.Location()
	if loc.Path != "/projects" || loc.RawQuery != "" {
		t.Errorf("location = %s, want query stripped", loc)
	}

	if _, err := h.page.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if h.slot.Pending() != 0 {
		t.Errorf("reload showed %v", messages(h.slot.Drain()))
	}
}

func TestLogin_BadCredentialsShowsErrorElement(t *testing.T) {
	h := newHarness(t)
	if _, err := h.page.Login(context.Background(), "ada", "wrong"); err != nil {
		t.Fatalf("login: %v", err)
	}
	alerts := h.slot.Drain()
	if len(alerts) != 1 || alerts[0].Body != "帳號或密碼錯誤" || alerts[0].Severity != models.SeverityError {
		t.Fatalf("alerts = %v", messages(alerts))
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	if _, err := h.page.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	alerts := h.slot.Drain()
	if len(alerts) != 1 || alerts[0].Body != notify.MsgLogout {
		t.Fatalf("alerts = %v", messages(alerts))
	}
}

func TestNavigate_FailedPageShowsItsOwnError(t *testing.T) {
	h := newHarness(t)
	h.srv.Fail("/projects", boardtest.Failure{
		Status:      http.StatusForbidden,
		Body:        `<div id="error-message">沒有權限檢視此專案</div>`,
		ContentType: echo.MIMETextHTMLCharsetUTF8,
	})

	signals, err := h.page.Navigate(context.Background(), "/projects")
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	alerts := h.slot.Drain()
	if len(signals) != 1 || len(alerts) != 1 || alerts[0].Body != "沒有權限檢視此專案" {
		t.Fatalf("alerts = %v", messages(alerts))
	}
}

func TestNavigate_FailedPageWithoutFeedback(t *testing.T) {
	h := newHarness(t)
	h.srv.Fail("/projects", boardtest.Failure{Status: http.StatusInternalServerError})

	if _, err := h.page.Navigate(context.Background(), "/projects"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	alerts := h.slot.Drain()
	if len(alerts) != 1 || alerts[0].Body != notify.MsgOperationKO || alerts[0].Channel != models.ChannelResponseBody {
		t.Fatalf("alerts = %v", messages(alerts))
	}
}

func TestNavigate_RedirectLoopFails(t *testing.T) {
	h := newHarness(t)
	h.srv.Echo.GET("/loop", func(c echo.Context) error {
		c.Response().Header().Set("HX-Redirect", "/loop")
		return c.HTML(http.StatusOK, "<p>loop</p>")
	})

	_, err := h.page.Navigate(context.Background(), "/loop")
	if err == nil || !strings.Contains(err.Error(), "too many hops") {
		t.Fatalf("err = %v, want too many hops", err)
	}
	if got := len(h.srv.Requests()); got != 6 {
		t.Errorf("requests = %d, want the first load plus 5 redirects", got)
	}
}

func TestFlashCookie_ConsumedOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.page.Client().Post(ctx, "/projects", url.Values{"name": {"看板"}}, ""); err != nil {
		t.Fatalf("creating project: %v", err)
	}
	if _, err := h.page.Navigate(ctx, "/projects"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	alerts := h.slot.Drain()
	if len(alerts) != 1 || alerts[0].Body != "專案 看板 建立成功。" {
		t.Fatalf("alerts = %v", messages(alerts))
	}

	if _, err := h.page.Navigate(ctx, "/projects"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if h.slot.Pending() != 0 {
		t.Errorf("flash replayed: %v", messages(h.slot.Drain()))
	}
}

func TestSubmit_SwapsAndReadsMarker(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.page.Navigate(ctx, h.srv.ProjectPath()); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	if _, err := h.page.Submit(ctx, http.MethodPost, "/tasks/101/delete", url.Values{}, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	alerts := h.slot.Drain()
	if len(alerts) != 1 || alerts[0].Body != "任務已刪除。" {
		t.Fatalf("alerts = %v", messages(alerts))
	}
	h.page.Turn(func(doc *view.Document) {
		if doc.Contains("message-data") {
			t.Error("marker should be removed after display")
		}
		if _, err := doc.ContainerOf(models.KindTask, "101"); err == nil {
			t.Error("deleted task still rendered")
		}
	})
	if r, ok := h.srv.LastRequest(http.MethodPost, "/tasks/101/delete"); !ok || r.Header.Get("X-CSRFToken") != "tok-123" {
		t.Errorf("request = %+v", r)
	}
}

func TestSubmit_FailureRendersOneError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.page.Navigate(ctx, h.srv.ProjectPath()); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	before, _ := h.page.HTML()

	h.srv.Fail("/lanes/1/delete", boardtest.Failure{Status: http.StatusBadRequest, Body: `{"detail":"權限不足"}`, ContentType: "application/json"})
	if _, err := h.page.Submit(ctx, http.MethodPost, "/lanes/1/delete", url.Values{}, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	alerts := h.slot.Drain()
	if len(alerts) != 1 || alerts[0].Body != "權限不足" || alerts[0].Channel != models.ChannelResponseBody {
		t.Fatalf("alerts = %v", messages(alerts))
	}
	after, _ := h.page.HTML()
	if before != after {
		t.Error("failed request must not swap the document")
	}
}

func TestReorder_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.page.Navigate(ctx, h.srv.ProjectPath()); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	pipe := reorder.New(h.page, h.page.Client(), h.arbiter)

	sig, err := pipe.Move(ctx, models.KindTask, "103", "3", 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if sig.Message != "任務位置已更新" {
		t.Errorf("signal = %+v", sig)
	}
	if got := h.slot.Drain(); len(got) != 1 {
		t.Errorf("alerts = %v", messages(got))
	}

	b := h.srv.Board()
	if len(b.Lanes[2].Tasks) != 1 || b.Lanes[2].Tasks[0].ID != "103" || len(b.Lanes[1].Tasks) != 0 {
		t.Errorf("server board = %+v", b)
	}
	r, _ := h.srv.LastRequest(http.MethodPatch, "/tasks/103/position")
	if r.Form.Get("new_index") != "1" || r.Form.Get("target_lane_id") != "3" || r.Header.Get("X-CSRFToken") != "tok-123" {
		t.Errorf("request = %+v", r)
	}

	h.page.Turn(func(doc *view.Document) {
		src, _ := doc.Container(models.KindTask, "2")
		dst, _ := doc.Container(models.KindTask, "3")
		if src.Placeholders() != 1 || dst.Placeholders() != 0 {
			t.Errorf("placeholders src=%d dst=%d", src.Placeholders(), dst.Placeholders())
		}
	})
}

func TestReorder_ServerTextShownVerbatim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.page.Navigate(ctx, h.srv.ProjectPath()); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	h.srv.Fail("/tasks/101/position", boardtest.Failure{Status: http.StatusNotFound, Body: "lane not found"})
	pipe := reorder.New(h.page, h.page.Client(), h.arbiter)

	sig, err := pipe.Move(ctx, models.KindTask, "101", "2", 1)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if sig.Severity != models.SeverityError || sig.Message != "更新任務位置失敗：lane not found" {
		t.Errorf("signal = %+v", sig)
	}
}

func TestReorder_MissingTokenStillSends(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.srv.SetToken("")
	if _, err := h.page.Navigate(ctx, h.srv.ProjectPath()); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if h.page.Token() != "" {
		t.Fatalf("token = %q, want empty", h.page.Token())
	}
	pipe := reorder.New(h.page, h.page.Client(), h.arbiter)

	if _, err := pipe.Move(ctx, models.KindLane, "3", "1", 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	r, ok := h.srv.LastRequest(http.MethodPatch, "/lanes/3/position")
	if !ok {
		t.Fatal("no request sent")
	}
	if vals, present := r.Header["X-Csrftoken"]; !present || vals[0] != "" {
		t.Errorf("csrf header = %v, %v", vals, present)
	}
	if r.Form.Get("project_id") != "1" {
		t.Errorf("form = %v", r.Form)
	}
	if got := h.srv.Board().Lanes[0].ID; got != "3" {
		t.Errorf("first lane = %s, want 3", got)
	}
}
