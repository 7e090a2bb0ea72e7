package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mrsingh-rishi/articulate/config"
	"github.com/mrsingh-rishi/articulate/feedback"
	"github.com/mrsingh-rishi/articulate/llm"
	"github.com/mrsingh-rishi/articulate/metrics"
	"github.com/mrsingh-rishi/articulate/pipeline"
	"github.com/mrsingh-rishi/articulate/progress"
	"github.com/mrsingh-rishi/articulate/session"
	"github.com/mrsingh-rishi/articulate/stt"
	"github.com/mrsingh-rishi/articulate/types"
	"github.com/mrsingh-rishi/articulate/workers"
)

type testEnv struct {
	server   *Server
	sessions *session.Registry
	hub      *progress.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Pipeline.TempDir = t.TempDir()
	m := metrics.New(prometheus.NewRegistry())

	scorer, err := feedback.NewScorer(llm.NewMockCompleter(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	p, err := pipeline.New(stt.NewMockTranscriber(), scorer, nil, m, pipeline.Config{TempDir: cfg.Pipeline.TempDir, Timeout: 5 * time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	worker, err := workers.NewFeedbackWorker(p, 1, zerolog.Nop())
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	worker.Start()
	t.Cleanup(worker.Stop)

	sessions := session.NewRegistry(time.Hour, 10, m, zerolog.Nop())
	hub := progress.NewHub(m)
	return &testEnv{
		server:   New(cfg, worker, sessions, hub, zerolog.Nop()),
		sessions: sessions,
		hub:      hub,
	}
}

type filePart struct {
	name        string
	contentType string
	data        string
}

func multipartRequest(t *testing.T, files []filePart, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte(f.data)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/feedback", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatal("expected session cookie")
	return nil
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t)
	app := env.server.App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", resp, err)
	}
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", resp.StatusCode)
	}
	env.server.SetReady(true)
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 when ready, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", resp.StatusCode)
	}
}

func TestIndexSetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("expected html, got %s", resp.Header.Get("Content-Type"))
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/api/feedback") {
		t.Fatal("expected page to post to the feedback API")
	}
	cookie := sessionCookie(t, resp)
	if _, ok := env.sessions.Get(cookie.Value); !ok {
		t.Fatal("expected session registered")
	}
}

func TestPagePlaysAudioByUploadIndex(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	if !strings.Contains(page, "audioURLs[r.index]") {
		t.Fatal("expected audio players keyed by upload index")
	}
	if strings.Contains(page, "audioURLs[r.file]") || strings.Contains(page, "audioURLs[f.name]") {
		t.Fatal("audio players must not be keyed by file name")
	}
}

func TestFeedbackWithoutFiles(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.server.App().Test(multipartRequest(t, nil, map[string]string{"style": "teacher"}))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["error"] == "" {
		t.Fatal("expected error message")
	}
}

func TestFeedbackBatchAndDownload(t *testing.T) {
	env := newTestEnv(t)
	app := env.server.App()

	req := multipartRequest(t, []filePart{
		{"first.wav", "audio/wav", "RIFF-one"},
		{"clip.ogg", "audio/ogg", "OggS"},
		{"second.mp3", "audio/mpeg", "ID3-two"},
	}, map[string]string{"style": "casual", "randomness": "on"})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	cookie := sessionCookie(t, resp)

	var body struct {
		SessionID string `json:"sessionId"`
		Reports   []struct {
			ID          string  `json:"id"`
			File        string  `json:"file"`
			Index       int     `json:"index"`
			Style       string  `json:"style"`
			Temperature float32 `json:"temperature"`
			Feedback    struct {
				Score string `json:"score"`
			} `json:"feedback"`
		} `json:"reports"`
		Failures []workers.Failure `json:"failures"`
		Timeline []struct {
			Score int    `json:"score"`
			Tier  string `json:"tier"`
		} `json:"timeline"`
	}
	decode(t, resp, &body)

	if len(body.Reports) != 2 || body.Reports[0].File != "first.wav" || body.Reports[1].File != "second.mp3" {
		t.Fatalf("expected reports in upload order, got %+v", body.Reports)
	}
	if body.Reports[0].Style != "casual" || body.Reports[0].Temperature != 0.7 {
		t.Fatalf("expected options applied, got %+v", body.Reports[0])
	}
	if body.Reports[0].Feedback.Score != "7" {
		t.Fatalf("expected mock score 7, got %s", body.Reports[0].Feedback.Score)
	}
	if len(body.Failures) != 1 || body.Failures[0].File != "clip.ogg" {
		t.Fatalf("expected ogg failure, got %+v", body.Failures)
	}
	if body.Reports[0].Index != 0 || body.Reports[1].Index != 2 || body.Failures[0].Index != 1 {
		t.Fatalf("expected upload indices 0 and 2 with failure at 1, got %+v %+v", body.Reports, body.Failures)
	}
	if len(body.Timeline) != 2 || body.Timeline[0].Tier != "✅" {
		t.Fatalf("unexpected timeline %+v", body.Timeline)
	}

	download := httptest.NewRequest(http.MethodGet, "/api/reports/"+body.Reports[0].ID+"/download", nil)
	download.AddCookie(cookie)
	resp, err = app.Test(download)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "GrammarFeedback_") || !strings.Contains(cd, ".txt") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	text, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(text), "Transcript:\n") || !strings.Contains(string(text), "Grammar Score: 7/10") {
		t.Fatalf("unexpected export %q", text)
	}

	history := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	history.AddCookie(cookie)
	resp, _ = app.Test(history)
	var hist struct {
		Total int `json:"total"`
	}
	decode(t, resp, &hist)
	if hist.Total != 2 {
		t.Fatalf("expected 2 history entries, got %d", hist.Total)
	}
}

func TestDownloadUnknownReport(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet, "/api/reports/nope/download", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestProgressRequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.server.App().Test(httptest.NewRequest(http.MethodGet, "/ws/progress", nil))
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}

func TestProgressWebsocket(t *testing.T) {
	env := newTestEnv(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go env.server.App().Listener(ln)
	t.Cleanup(func() { _ = env.server.Shutdown(context.Background()) })

	sess := env.sessions.GetOrCreate("")
	header := http.Header{"Cookie": {SessionCookie + "=" + sess.ID}}
	conn, _, err := gws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/progress", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Subscribers(sess.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("socket never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	env.hub.Publish(types.StageEvent{SessionID: sess.ID, File: "a.wav", Stage: types.StageTranscribing, Timestamp: time.Now()})
	env.hub.Publish(types.StageEvent{SessionID: "someone-else", File: "b.wav", Stage: types.StageComplete})
	env.hub.Publish(types.StageEvent{SessionID: sess.ID, File: "a.wav", Stage: types.StageComplete, Timestamp: time.Now()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []types.Stage{types.StageTranscribing, types.StageComplete} {
		var ev types.StageEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Stage != want || ev.File != "a.wav" {
			t.Fatalf("expected %s for a.wav, got %+v", want, ev)
		}
	}
}

func TestParseToggle(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "TRUE": true, "1": true, "": false, "off": false} {
		if got := parseToggle(in); got != want {
			t.Errorf("parseToggle(%q) = %v", in, got)
		}
	}
}

func TestDownloadNamedByProcessingTime(t *testing.T) {
	env := newTestEnv(t)
	app := env.server.App()

	resp, err := app.Test(multipartRequest(t, []filePart{{"first.wav", "audio/wav", "RIFF-one"}}, nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	cookie := sessionCookie(t, resp)
	var body struct {
		Reports []struct {
			ID string `json:"id"`
		} `json:"reports"`
	}
	decode(t, resp, &body)
	if len(body.Reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(body.Reports))
	}

	sess, ok := env.sessions.Get(cookie.Value)
	if !ok {
		t.Fatal("expected session to exist")
	}
	stored, ok := sess.Report(body.Reports[0].ID)
	if !ok {
		t.Fatal("expected report stored in session")
	}
	stored.CreatedAt = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	download := httptest.NewRequest(http.MethodGet, "/api/reports/"+stored.ID+"/download", nil)
	download.AddCookie(cookie)
	resp, err = app.Test(download)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "GrammarFeedback_2020-01-02_03-04-05.txt") {
		t.Fatalf("expected name stamped with processing time, got %q", cd)
	}
}
