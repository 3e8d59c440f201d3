package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/config"
	"github.com/robalobadob/wordduel/internal/db"
	"github.com/robalobadob/wordduel/internal/matchmaking"
	"github.com/robalobadob/wordduel/internal/session"
	"github.com/robalobadob/wordduel/internal/words"
)

type captureMail struct {
	mu   sync.Mutex
	to   string
	code string
	fail error
}

func (m *captureMail) Send(_ context.Context, address, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to, m.code = address, code
	return m.fail
}

func (m *captureMail) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// syncBuffer collects log output written from server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (m *captureMail) last() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.to, m.code
}

type harness struct {
	srv   *httptest.Server
	mail  *captureMail
	store *db.Store
	logs  *syncBuffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := db.Open(db.Options{Driver: db.DriverSQLite, DSN: filepath.Join(t.TempDir(), "duel.db")}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	src, err := words.Init(context.Background(), words.Options{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	coord := matchmaking.New(matchmaking.Options{
		Config: matchmaking.Config{BotWait: time.Hour, Session: session.Config{TurnTimeout: time.Hour}},
		Words:  src,
		Chips:  st,
		Book:   st,
		Logger: zerolog.Nop(),
	})
	t.Cleanup(coord.Close)

	m := &captureMail{}
	logs := &syncBuffer{}
	s := New(Options{
		Config: &config.Config{
			ClientOrigin: "http://localhost:5173",
			PublicURL:    "http://localhost:5173",
			JWTSecret:    "test-secret",
			JWTTTL:       time.Hour,
		},
		Store:       st,
		Coordinator: coord,
		Words:       src,
		Mail:        m,
		Logger:      zerolog.New(logs),
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &harness{srv: srv, mail: m, store: st, logs: logs}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (h *harness) signup(t *testing.T, username string) string {
	t.Helper()
	code, out := h.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"username": username, "password": "password1"})
	if code != http.StatusOK {
		t.Fatalf("signup %s: %d %v", username, code, out)
	}
	tok, _ := out["token"].(string)
	if tok == "" {
		t.Fatalf("signup returned no token: %v", out)
	}
	return tok
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	code, out := h.do(t, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK || out["ok"] != true {
		t.Fatalf("health = %d %v", code, out)
	}
	code, _ = h.do(t, http.MethodGet, "/nowhere", "", nil)
	if code != http.StatusNotFound {
		t.Fatalf("unknown path = %d", code)
	}
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)
	tok := h.signup(t, "ann_1")

	code, out := h.do(t, http.MethodGet, "/auth/me", tok, nil)
	if code != http.StatusOK || out["username"] != "ann_1" {
		t.Fatalf("me = %d %v", code, out)
	}
	code, out = h.do(t, http.MethodGet, "/stats/me", tok, nil)
	if code != http.StatusOK || out["chips"] != float64(0) || out["verified"] != false {
		t.Fatalf("stats = %d %v", code, out)
	}

	if code, _ := h.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"username": "ANN_1", "password": "password1"}); code != http.StatusConflict {
		t.Fatalf("duplicate signup = %d", code)
	}
	if code, _ := h.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"username": "x", "password": "password1"}); code != http.StatusBadRequest {
		t.Fatalf("short username = %d", code)
	}
	if code, _ := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "ann_1", "password": "wrong-password"}); code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", code)
	}
	code, out = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "ann_1", "password": "password1"})
	if code != http.StatusOK || out["token"] == "" {
		t.Fatalf("login = %d %v", code, out)
	}

	if code, _ := h.do(t, http.MethodGet, "/auth/me", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous me = %d", code)
	}
	if code, _ := h.do(t, http.MethodGet, "/auth/me", "not.a.token", nil); code != http.StatusUnauthorized {
		t.Fatalf("forged me = %d", code)
	}
}

func TestVerifyFlow(t *testing.T) {
	h := newHarness(t)
	tok := h.signup(t, "bob")

	if code, _ := h.do(t, http.MethodPost, "/auth/verify", tok, map[string]string{"email": "nope"}); code != http.StatusBadRequest {
		t.Fatalf("bad address = %d", code)
	}
	if code, out := h.do(t, http.MethodPost, "/auth/verify", tok, map[string]string{"email": "bob@example.com"}); code != http.StatusOK {
		t.Fatalf("verify = %d %v", code, out)
	}
	to, sent := h.mail.last()
	if to != "bob@example.com" || len(sent) != 6 {
		t.Fatalf("mail to %q code %q", to, sent)
	}
	if code, _ := h.do(t, http.MethodPost, "/auth/verify", tok, map[string]string{"email": "bob@example.com"}); code != http.StatusTooManyRequests {
		t.Fatalf("resend = %d", code)
	}

	wrong := "000000"
	if sent == wrong {
		wrong = "111111"
	}
	if code, _ := h.do(t, http.MethodPost, "/auth/verify/confirm", tok, map[string]string{"code": wrong}); code != http.StatusBadRequest {
		t.Fatalf("wrong code = %d", code)
	}
	if code, out := h.do(t, http.MethodPost, "/auth/verify/confirm", tok, map[string]string{"code": sent}); code != http.StatusOK {
		t.Fatalf("confirm = %d %v", code, out)
	}
	if _, out := h.do(t, http.MethodGet, "/stats/me", tok, nil); out["verified"] != true {
		t.Fatalf("stats after confirm = %v", out)
	}
}

func TestVerifyCodeLoggedWhenMailFails(t *testing.T) {
	h := newHarness(t)
	tok := h.signup(t, "dora")
	h.mail.failWith(errors.New("mail API down"))

	if code, out := h.do(t, http.MethodPost, "/auth/verify", tok, map[string]string{"email": "dora@example.com"}); code != http.StatusOK {
		t.Fatalf("verify with failing mail = %d %v", code, out)
	}
	_, sent := h.mail.last()
	if !strings.Contains(h.logs.String(), `"code":"`+sent+`"`) {
		t.Fatalf("code %s not in logs:\n%s", sent, h.logs.String())
	}
	if code, out := h.do(t, http.MethodPost, "/auth/verify/confirm", tok, map[string]string{"code": sent}); code != http.StatusOK {
		t.Fatalf("confirm logged code = %d %v", code, out)
	}
}

func TestStatsReportsBoundMatch(t *testing.T) {
	h := newHarness(t)
	tok := h.signup(t, "eve")
	_, me := h.do(t, http.MethodGet, "/auth/me", tok, nil)
	id, _ := me["id"].(string)

	if _, out := h.do(t, http.MethodGet, "/stats/me", tok, nil); out["match"] != nil {
		t.Fatalf("unbound stats = %v", out)
	}
	if err := h.store.Bind(context.Background(), id, "ABC234"); err != nil {
		t.Fatal(err)
	}
	if _, out := h.do(t, http.MethodGet, "/stats/me", tok, nil); out["match"] != "ABC234" {
		t.Fatalf("bound stats = %v", out)
	}
}

// wsEvent is the subset of an event the tests look at.
type wsEvent struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
	Queue    string `json:"queue"`
	Message  string `json:"message"`
}

func (h *harness) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
	}
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, hdr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]string) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatal(err)
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) wsEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev wsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if ev.Type == typ {
			return ev
		}
	}
}

func TestPrivateMatchOverWebsocket(t *testing.T) {
	h := newHarness(t)
	a := h.dial(t, "")
	b := h.dial(t, "")

	send(t, a, map[string]string{"type": "create_match", "name": "Ann"})
	created := readUntil(t, a, "match_created")
	if len(created.Code) != 6 || created.PlayerID == "" {
		t.Fatalf("match_created = %+v", created)
	}

	resp, err := http.Get(h.srv.URL + "/match/" + strings.ToLower(created.Code) + "/qr")
	if err != nil {
		t.Fatal(err)
	}
	png, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" || !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("qr = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	send(t, b, map[string]string{"type": "join_match", "name": "Bob", "code": created.Code})
	readUntil(t, a, "match_started")
	readUntil(t, b, "match_started")

	send(t, b, map[string]string{"type": "dance"})
	if ev := readUntil(t, b, "error"); !strings.Contains(ev.Message, "unknown intent") {
		t.Fatalf("error = %+v", ev)
	}

	// b may not act on a's seat.
	send(t, b, map[string]string{"type": "submit_guess", "code": created.Code, "playerId": created.PlayerID, "guess": "CRANE"})
	readUntil(t, b, "error")
}

func TestQRUnknownMatch(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.srv.URL + "/match/ZZZZZZ/qr")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRankedNeedsAccount(t *testing.T) {
	h := newHarness(t)

	guest := h.dial(t, "")
	send(t, guest, map[string]string{"type": "enqueue", "queue": "ranked"})
	if ev := readUntil(t, guest, "error"); ev.Message != "sign in to play ranked" {
		t.Fatalf("guest ranked = %+v", ev)
	}

	member := h.dial(t, h.signup(t, "cat"))
	send(t, member, map[string]string{"type": "enqueue", "queue": "ranked"})
	if ev := readUntil(t, member, "queued"); ev.Queue != "ranked" {
		t.Fatalf("queued = %+v", ev)
	}
	send(t, member, map[string]string{"type": "cancel_queue"})
	send(t, member, map[string]string{"type": "cancel_queue"})
	if ev := readUntil(t, member, "error"); ev.Message != "not queued" {
		t.Fatalf("second cancel = %+v", ev)
	}
}
