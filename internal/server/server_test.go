package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Remijang/cnl-final-project-sub000/internal/access"
	"github.com/Remijang/cnl-final-project-sub000/internal/auth"
	"github.com/Remijang/cnl-final-project-sub000/internal/database"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, tokens, Options{StoreTimeout: time.Second}, logger)
	return &testServer{t: t, handler: srv.Router()}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			ts.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// expect asserts the status and decodes the body into out when non-nil.
func (ts *testServer) expect(rec *httptest.ResponseRecorder, status int, out any) {
	ts.t.Helper()
	if rec.Code != status {
		ts.t.Fatalf("status = %d, want %d; body: %s", rec.Code, status, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			ts.t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
}

type session struct {
	token  string
	userID int64
}

func (ts *testServer) register(name string) session {
	ts.t.Helper()
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	ts.expect(ts.do("POST", "/api/auth/register", "", map[string]string{"username": name, "password": "correct horse"}), http.StatusCreated, &resp)
	return session{token: resp.Token, userID: resp.User.ID}
}

type errResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do("GET", "/health", "", nil)
	ts.expect(rec, http.StatusOK, nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.register("alice")

	var e errResp
	ts.expect(ts.do("POST", "/api/auth/register", "", map[string]string{"username": "alice", "password": "another one"}), http.StatusConflict, &e)
	if e.Code != "conflict" {
		t.Errorf("code = %q, want conflict", e.Code)
	}
	ts.expect(ts.do("POST", "/api/auth/register", "", map[string]string{"username": "x", "password": "long enough"}), http.StatusBadRequest, nil)
	ts.expect(ts.do("POST", "/api/auth/register", "", map[string]string{"username": "bob", "password": "short"}), http.StatusBadRequest, nil)

	var login struct {
		Token string `json:"token"`
	}
	ts.expect(ts.do("POST", "/api/auth/login", "", map[string]string{"username": "alice", "password": "correct horse"}), http.StatusOK, &login)
	if login.Token == "" {
		t.Fatal("empty token")
	}
	ts.expect(ts.do("GET", "/api/calendars", login.Token, nil), http.StatusOK, nil)

	ts.expect(ts.do("POST", "/api/auth/login", "", map[string]string{"username": "alice", "password": "wrong"}), http.StatusUnauthorized, nil)
	ts.expect(ts.do("POST", "/api/auth/login", "", map[string]string{"username": "nobody", "password": "correct horse"}), http.StatusUnauthorized, nil)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	ts := newTestServer(t)
	ts.expect(ts.do("GET", "/api/calendars", "", nil), http.StatusUnauthorized, nil)
	ts.expect(ts.do("GET", "/api/polls", "garbage", nil), http.StatusUnauthorized, nil)
}

func TestReadLinkFlow(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner")
	a := ts.register("alice")

	var cal struct {
		ID         int64 `json:"id"`
		Visibility bool  `json:"visibility"`
	}
	ts.expect(ts.do("POST", "/api/calendars", owner.token, map[string]string{"title": "Team"}), http.StatusCreated, &cal)
	base := fmt.Sprintf("/api/calendars/%d", cal.ID)

	ts.expect(ts.do("GET", base, a.token, nil), http.StatusForbidden, nil)
	ts.expect(ts.do("POST", base+"/links/read/enable", a.token, nil), http.StatusForbidden, nil)
	ts.expect(ts.do("GET", base+"/links/admin", owner.token, nil), http.StatusBadRequest, nil)

	var link struct {
		ID      int64  `json:"id"`
		Enabled bool   `json:"enabled"`
		Token   string `json:"token"`
	}
	ts.expect(ts.do("POST", base+"/links/read/enable", owner.token, nil), http.StatusOK, &link)
	if !link.Enabled || len(link.Token) != 32 {
		t.Fatalf("link = %+v", link)
	}

	var e errResp
	ts.expect(ts.do("POST", "/api/calendars/999/links/read/claim", a.token, map[string]string{"token": link.Token}), http.StatusBadRequest, &e)
	if e.Code != "invalid_link" {
		t.Errorf("code = %q, want invalid_link", e.Code)
	}

	var grants []struct {
		Role string `json:"role"`
	}
	ts.expect(ts.do("POST", base+"/links/read/claim", a.token, map[string]string{"token": link.Token}), http.StatusOK, &grants)
	if len(grants) != 1 || grants[0].Role != "read" {
		t.Fatalf("grants = %+v", grants)
	}

	ts.expect(ts.do("GET", base, a.token, nil), http.StatusOK, nil)
	ts.expect(ts.do("POST", base+"/subscription", a.token, nil), http.StatusOK, nil)
	ts.expect(ts.do("POST", base+"/subscription", a.token, nil), http.StatusConflict, nil)

	var subs []struct {
		ID int64 `json:"id"`
	}
	ts.expect(ts.do("GET", "/api/subscriptions", a.token, nil), http.StatusOK, &subs)
	if len(subs) != 1 || subs[0].ID != cal.ID {
		t.Fatalf("subscriptions = %+v", subs)
	}

	var subscribers struct {
		UserIDs []int64 `json:"user_ids"`
	}
	ts.expect(ts.do("GET", base+"/subscribers", owner.token, nil), http.StatusOK, &subscribers)
	if len(subscribers.UserIDs) != 1 || subscribers.UserIDs[0] != a.userID {
		t.Errorf("subscribers = %+v", subscribers)
	}
	ts.expect(ts.do("GET", base+"/subscribers", a.token, nil), http.StatusForbidden, nil)

	var disabled access.LinkStatus
	ts.expect(ts.do("POST", base+"/links/read/disable", owner.token, nil), http.StatusOK, &disabled)
	if disabled.Enabled || disabled.Token != "" {
		t.Errorf("disabled link = %+v", disabled)
	}

	ts.expect(ts.do("GET", base, a.token, nil), http.StatusForbidden, nil)
	ts.expect(ts.do("GET", "/api/subscriptions", a.token, nil), http.StatusOK, &subs)
	if len(subs) != 0 {
		t.Errorf("subscriptions after disable = %+v", subs)
	}
	ts.expect(ts.do("DELETE", base+"/subscription", a.token, nil), http.StatusNotFound, nil)
}

func TestVisibilityAndGrants(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner")
	a := ts.register("alice")

	var cal struct {
		ID int64 `json:"id"`
	}
	ts.expect(ts.do("POST", "/api/calendars", owner.token, map[string]string{"title": "Public"}), http.StatusCreated, &cal)
	base := fmt.Sprintf("/api/calendars/%d", cal.ID)

	ts.expect(ts.do("PUT", base+"/visibility", owner.token, map[string]any{}), http.StatusBadRequest, nil)

	var vs struct {
		ID         int64 `json:"id"`
		Visibility bool  `json:"visibility"`
	}
	ts.expect(ts.do("PUT", base+"/visibility", owner.token, map[string]bool{"visibility": true}), http.StatusOK, &vs)
	if !vs.Visibility || vs.ID != cal.ID {
		t.Fatalf("visibility = %+v", vs)
	}
	ts.expect(ts.do("POST", base+"/subscription", a.token, nil), http.StatusOK, nil)

	ts.expect(ts.do("PUT", base+"/visibility", owner.token, map[string]bool{"visibility": false}), http.StatusOK, nil)
	ts.expect(ts.do("DELETE", base+"/subscription", a.token, nil), http.StatusNotFound, nil)

	var link struct {
		Token string `json:"token"`
	}
	ts.expect(ts.do("POST", base+"/links/write/enable", owner.token, nil), http.StatusOK, &link)
	ts.expect(ts.do("POST", base+"/links/write/claim", a.token, map[string]string{"token": link.Token}), http.StatusOK, nil)

	var grants []struct {
		UserID int64  `json:"user_id"`
		Role   string `json:"role"`
	}
	ts.expect(ts.do("GET", base+"/grants", owner.token, nil), http.StatusOK, &grants)
	if len(grants) != 2 {
		t.Fatalf("grants = %+v", grants)
	}
	ts.expect(ts.do("GET", base+"/grants", a.token, nil), http.StatusForbidden, nil)

	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	event := map[string]string{
		"title":      "Planning",
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(time.Hour).Format(time.RFC3339),
	}
	var ev struct {
		ID int64 `json:"id"`
	}
	ts.expect(ts.do("POST", base+"/events", a.token, event), http.StatusCreated, &ev)

	ts.expect(ts.do("DELETE", fmt.Sprintf("%s/grants/%d/write", base, a.userID), owner.token, nil), http.StatusNoContent, nil)
	ts.expect(ts.do("DELETE", fmt.Sprintf("%s/grants/%d/write", base, a.userID), owner.token, nil), http.StatusNotFound, nil)
	ts.expect(ts.do("POST", base+"/events", a.token, event), http.StatusForbidden, nil)

	var events []struct {
		Title string `json:"title"`
	}
	ts.expect(ts.do("GET", base+"/events?start=2026-06-01&end=2026-06-02", a.token, nil), http.StatusOK, &events)
	if len(events) != 1 || events[0].Title != "Planning" {
		t.Errorf("events = %+v", events)
	}
	ts.expect(ts.do("GET", base+"/events", a.token, nil), http.StatusBadRequest, nil)
	ts.expect(ts.do("DELETE", fmt.Sprintf("%s/events/%d", base, ev.ID), owner.token, nil), http.StatusNoContent, nil)

	ts.expect(ts.do("DELETE", base, a.token, nil), http.StatusForbidden, nil)
	ts.expect(ts.do("DELETE", base, owner.token, nil), http.StatusNoContent, nil)
	ts.expect(ts.do("GET", base, owner.token, nil), http.StatusNotFound, nil)
}

type pollCreated struct {
	Poll struct {
		ID int64 `json:"id"`
	} `json:"poll"`
	TimeRanges []struct {
		ID int64 `json:"id"`
	} `json:"time_ranges"`
}

func (ts *testServer) createPoll(token string) pollCreated {
	ts.t.Helper()
	t1 := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	body := map[string]any{
		"title": "Offsite",
		"time_ranges": []map[string]string{
			{"start": t1.Format(time.RFC3339), "end": t1.Add(time.Hour).Format(time.RFC3339)},
			{"start": t1.Add(48 * time.Hour).Format(time.RFC3339), "end": t1.Add(49 * time.Hour).Format(time.RFC3339)},
		},
	}
	var created pollCreated
	ts.expect(ts.do("POST", "/api/polls", token, body), http.StatusCreated, &created)
	return created
}

func TestPollFlow(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner")
	a := ts.register("alice")
	b := ts.register("bob")

	ts.expect(ts.do("POST", "/api/polls", owner.token, map[string]any{"title": ""}), http.StatusBadRequest, nil)

	p := ts.createPoll(owner.token)
	base := fmt.Sprintf("/api/polls/%d", p.Poll.ID)
	tr := p.TimeRanges[0].ID

	var invite struct {
		UserID  int64 `json:"user_id"`
		Invited bool  `json:"invited"`
	}
	ts.expect(ts.do("POST", base+"/invite", owner.token, map[string]string{"username": "alice"}), http.StatusOK, &invite)
	if !invite.Invited || invite.UserID != a.userID {
		t.Errorf("invite = %+v", invite)
	}
	ts.expect(ts.do("POST", base+"/invite", a.token, map[string]int64{"user_id": b.userID}), http.StatusForbidden, nil)
	ts.expect(ts.do("POST", base+"/invite", owner.token, map[string]any{}), http.StatusBadRequest, nil)

	var group struct {
		ID int64 `json:"id"`
	}
	ts.expect(ts.do("POST", "/api/groups", owner.token, map[string]string{"name": "team"}), http.StatusCreated, &group)
	for _, u := range []int64{a.userID, b.userID} {
		ts.expect(ts.do("POST", fmt.Sprintf("/api/groups/%d/members", group.ID), owner.token, map[string]int64{"user_id": u}), http.StatusNoContent, nil)
	}
	var gi struct {
		Invited        int `json:"invited"`
		AlreadyInvited int `json:"already_invited"`
	}
	ts.expect(ts.do("POST", base+"/invite-group", owner.token, map[string]int64{"group_id": group.ID}), http.StatusOK, &gi)
	if gi.Invited != 1 || gi.AlreadyInvited != 1 {
		t.Errorf("group invite = %+v", gi)
	}

	votes := map[string]any{"votes": []map[string]any{{"time_range_id": tr, "is_available": true}}}
	ts.expect(ts.do("POST", base+"/votes", a.token, votes), http.StatusOK, nil)
	ts.expect(ts.do("POST", base+"/votes", a.token, votes), http.StatusOK, nil)
	bad := map[string]any{"votes": []map[string]any{{"time_range_id": tr, "is_available": true}, {"time_range_id": 9999, "is_available": true}}}
	ts.expect(ts.do("POST", base+"/votes", b.token, bad), http.StatusBadRequest, nil)

	var status struct {
		State      string `json:"state"`
		TimeRanges []struct {
			ID             int64 `json:"id"`
			AvailableCount int   `json:"available_count"`
		} `json:"time_ranges"`
	}
	ts.expect(ts.do("GET", base, b.token, nil), http.StatusOK, &status)
	if status.State != "open" || status.TimeRanges[0].AvailableCount != 1 || status.TimeRanges[1].AvailableCount != 0 {
		t.Errorf("status = %+v", status)
	}

	var open []struct {
		ID int64 `json:"id"`
	}
	var ballots []struct {
		UserID int64 `json:"user_id"`
	}
	ts.expect(ts.do("GET", base+"/votes", owner.token, nil), http.StatusOK, &ballots)
	if len(ballots) != 1 || ballots[0].UserID != a.userID {
		t.Errorf("votes = %+v", ballots)
	}
	ts.expect(ts.do("GET", base+"/votes", a.token, nil), http.StatusForbidden, nil)

	ts.expect(ts.do("GET", "/api/polls", a.token, nil), http.StatusOK, &open)
	if len(open) != 1 {
		t.Errorf("open polls = %+v", open)
	}

	ts.expect(ts.do("POST", base+"/confirm", owner.token, map[string]int64{"time_range_id": 9999}), http.StatusNotFound, nil)
	ts.expect(ts.do("POST", base+"/confirm", owner.token, map[string]int64{"time_range_id": tr}), http.StatusOK, nil)
	ts.expect(ts.do("POST", base+"/cancel", owner.token, nil), http.StatusConflict, nil)
	ts.expect(ts.do("GET", "/api/polls", a.token, nil), http.StatusOK, &open)
	if len(open) != 0 {
		t.Errorf("open polls after confirm = %+v", open)
	}

	other := ts.createPoll(owner.token)
	otherBase := fmt.Sprintf("/api/polls/%d", other.Poll.ID)
	ts.expect(ts.do("POST", otherBase+"/cancel", owner.token, nil), http.StatusOK, nil)
	ts.expect(ts.do("GET", otherBase, owner.token, nil), http.StatusNotFound, nil)
}

func TestWebSocketPollUpdates(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner")
	a := ts.register("alice")
	p := ts.createPoll(owner.token)

	httpSrv := httptest.NewServer(ts.handler)
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + a.token}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	watch := fmt.Sprintf(`{"action":"watch","poll_id":%d}`, p.Poll.ID)
	if err := conn.Write(ctx, websocket.MessageText, []byte(watch)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The watch command is applied asynchronously; vote until a message arrives.
	votes := map[string]any{"votes": []map[string]any{{"time_range_id": p.TimeRanges[0].ID, "is_available": true}}}
	got := make(chan []byte, 1)
	go func() {
		_, data, err := conn.Read(ctx)
		if err == nil {
			got <- data
		}
	}()
	for {
		ts.expect(ts.do("POST", fmt.Sprintf("/api/polls/%d/votes", p.Poll.ID), a.token, votes), http.StatusOK, nil)
		select {
		case data := <-got:
			var msg struct {
				Type string `json:"type"`
				ID   int64  `json:"id"`
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if msg.Type != "poll_voted" || msg.ID != p.Poll.ID {
				t.Errorf("message = %+v", msg)
			}
			return
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			t.Fatal("no websocket message received")
		}
	}
}

func TestWebSocketRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.handler)
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(httpSrv.URL, "http")+"/ws", nil)
	if err == nil {
		t.Fatal("expected dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}
