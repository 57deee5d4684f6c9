package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mednote/mednote/internal/config"
	"github.com/mednote/mednote/internal/platform/websocket"
)

var uuidRE = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// localEnv points the CLI at a fresh SQLite file.
func localEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV", "development")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("LOCAL_PATH", filepath.Join(t.TempDir(), "mednote.db"))
	t.Setenv("PRINCIPAL", "dr-test")
	t.Setenv("NATS_URL", "")
	t.Setenv("SEED_DEMO_DATA", "false")
	t.Setenv("PUSHGATEWAY_URL", "")
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := rootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, args ...string) (string, string) {
	t.Helper()
	out, errOut, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\nstderr: %s", args, err, errOut)
	}
	return out, errOut
}

func TestCLI_PatientAndNoteLifecycle(t *testing.T) {
	localEnv(t)

	out, toast := mustRun(t, "patients", "add",
		"--name", "Jane Doe", "--contact", "(555) 010-2000",
		"--conditions", "Asthma", "--tag", "Asthma", "--tag", " asthma ", "--tag", "new")
	if !strings.Contains(toast, "Patient added successfully") {
		t.Errorf("expected success toast, got %q", toast)
	}
	if n := strings.Count(out, "#asthma"); n != 1 {
		t.Errorf("expected tag once after normalization, got %d in %q", n, out)
	}
	patientID := uuidRE.FindString(out)
	if patientID == "" {
		t.Fatalf("no patient id in output %q", out)
	}

	out, _ = mustRun(t, "patients", "list", "--search", "ASTH")
	if !strings.Contains(out, "Jane Doe") || !strings.Contains(out, "1 of 1 patients") {
		t.Errorf("unexpected list output %q", out)
	}
	out, _ = mustRun(t, "patients", "list", "--tag", "missing")
	if !strings.Contains(out, "0 of 1 patients") {
		t.Errorf("tag filter should exclude the patient, got %q", out)
	}

	out, _ = mustRun(t, "notes", "add", "--patient", patientID, "--template", "soap", "--tag", "Follow")
	if !strings.Contains(out, "Subjective:") || !strings.Contains(out, "Plan:") {
		t.Errorf("expected SOAP headings as default content, got %q", out)
	}
	noteID := uuidRE.FindString(out)
	if noteID == "" {
		t.Fatalf("no note id in output %q", out)
	}

	out, _ = mustRun(t, "notes", "search", "jane")
	if !strings.Contains(out, noteID) || !strings.Contains(out, "1 of 1 notes") {
		t.Errorf("search by patient name should find the note, got %q", out)
	}

	out, _ = mustRun(t, "patients", "whatsapp", patientID)
	if strings.TrimSpace(out) != "https://wa.me/15550102000" {
		t.Errorf("whatsapp link = %q", out)
	}

	out, _ = mustRun(t, "patients", "show", patientID)
	if !strings.Contains(out, noteID) {
		t.Errorf("show should list the patient's notes, got %q", out)
	}

	_, toast = mustRun(t, "patients", "delete", patientID, "--yes")
	if !strings.Contains(toast, "Patient deleted successfully") {
		t.Errorf("expected delete toast, got %q", toast)
	}

	out, _ = mustRun(t, "notes", "list")
	if strings.Contains(out, noteID) {
		t.Errorf("note should be gone with its patient, got %q", out)
	}
	if _, _, err := run(t, "notes", "show", noteID); err == nil {
		t.Error("expected error showing a deleted note")
	}
}

func TestCLI_EditOnlyGivenFields(t *testing.T) {
	localEnv(t)

	out, _ := mustRun(t, "patients", "add", "--name", "Ann Lee", "--allergies", "None", "--dob", "1990-01-02")
	id := uuidRE.FindString(out)

	out, _ = mustRun(t, "patients", "edit", id, "--allergies", "Latex")
	if !strings.Contains(out, "Latex") || !strings.Contains(out, "1990-01-02") {
		t.Errorf("edit should keep untouched fields, got %q", out)
	}

	if _, _, err := run(t, "patients", "edit", id); err == nil {
		t.Error("expected error when no fields are given")
	}

	out, _ = mustRun(t, "patients", "tag", id, "--add", "Urgent", "--add", "cardiac", "--remove", "cardiac")
	if !strings.Contains(out, "#urgent") || strings.Contains(out, "#cardiac") {
		t.Errorf("unexpected tags %q", out)
	}
}

func TestCLI_NotFound(t *testing.T) {
	localEnv(t)

	_, toast, err := run(t, "patients", "show", "does-not-exist")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	if !strings.Contains(toast, "Patient not found") {
		t.Errorf("expected not-found toast, got %q", toast)
	}

	_, _, err = run(t, "patients", "edit", "does-not-exist", "--name", "X")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error on edit, got %v", err)
	}

	_, _, err = run(t, "notes", "delete", "does-not-exist", "--yes")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error on note delete, got %v", err)
	}
}

func TestCLI_RejectsBadInput(t *testing.T) {
	localEnv(t)

	if _, _, err := run(t, "patients", "add"); err == nil {
		t.Error("expected error without --name")
	}
	out, _ := mustRun(t, "patients", "add", "--name", "Bo")
	id := uuidRE.FindString(out)
	_, _, err := run(t, "notes", "add", "--patient", id, "--template", "Letter")
	if err == nil || !strings.Contains(err.Error(), "unknown template") {
		t.Errorf("expected unknown template error, got %v", err)
	}
}

func TestCLI_InvalidConfig(t *testing.T) {
	localEnv(t)
	t.Setenv("STORE_DRIVER", "remote")
	t.Setenv("API_URL", "")

	if _, _, err := run(t, "patients", "list"); err == nil || !strings.Contains(err.Error(), "API_URL") {
		t.Errorf("expected API_URL error, got %v", err)
	}
}

func TestCLI_PushesSessionMetrics(t *testing.T) {
	localEnv(t)
	var (
		mu    sync.Mutex
		paths []string
		body  []byte
	)
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		body = append(body, b...)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()
	t.Setenv("PUSHGATEWAY_URL", gw.URL)

	out, _ := mustRun(t, "patients", "add", "--name", "Jane Doe")
	id := uuidRE.FindString(out)
	mustRun(t, "patients", "show", id)

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 {
		t.Fatalf("expected one push per invocation, got %v", paths)
	}
	if paths[0] != "PUT /metrics/job/mednote_cli/principal/dr-test" {
		t.Errorf("unexpected push %q", paths[0])
	}
	for _, name := range []string{
		"mednote_store_request_duration_seconds",
		"mednote_coordinator_notifications_total",
		"mednote_coordinator_selections_total",
	} {
		if !bytes.Contains(body, []byte(name)) {
			t.Errorf("expected %s in pushed metrics", name)
		}
	}
}

func TestCLI_VerboseLogsNotifications(t *testing.T) {
	localEnv(t)
	_, stderr := mustRun(t, "--verbose", "patients", "add", "--name", "Jane Doe")
	// Once as a toast and once in the debug log.
	if n := strings.Count(stderr, "Patient added successfully"); n != 2 {
		t.Fatalf("expected the notification twice, got %d in %q", n, stderr)
	}

	localEnv(t)
	_, stderr = mustRun(t, "patients", "add", "--name", "Jane Doe")
	if n := strings.Count(stderr, "Patient added successfully"); n != 1 {
		t.Fatalf("expected only the toast without --verbose, got %d in %q", n, stderr)
	}
}

func TestCLI_Templates(t *testing.T) {
	out, _ := mustRun(t, "notes", "templates")
	for _, want := range []string{"SOAP", "H&P", "Follow-up", "Free", "Interval History"} {
		if !strings.Contains(out, want) {
			t.Errorf("templates output missing %q", want)
		}
	}
}

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"SOAP", "SOAP", false},
		{"h&p", "H&P", false},
		{"follow-up", "Follow-up", false},
		{"free", "Free", false},
		{"progress", "", true},
	}
	for _, tt := range tests {
		got, err := parseTemplate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTemplate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("parseTemplate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := preview("  Subjective: cough\nObjective: clear", 40); got != "Subjective: cough" {
		t.Errorf("preview first line = %q", got)
	}
	if got := preview("abcdefghij", 5); got != "abcd…" {
		t.Errorf("preview truncated = %q", got)
	}
}

func TestConfirm_YesSkipsPrompt(t *testing.T) {
	if err := confirm(rootCmd(), "Delete?", "", true); err != nil {
		t.Errorf("confirm with yes = %v", err)
	}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	localEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	b, err := openBackend(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(b.Close)
	return newServer(cfg, b, zerolog.Nop(), prometheus.NewRegistry())
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(t)
	rec := serve(h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestServer_PatientsAPI(t *testing.T) {
	h := newTestServer(t)

	rec := serve(h, http.MethodPost, "/api/v1/patients", `{"name":"Jane Doe","tags":["asthma"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	id := uuidRE.FindString(rec.Body.String())

	rec = serve(h, http.MethodGet, "/api/v1/patients", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Jane Doe") {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Error("expected Cache-Control on API responses")
	}

	rec = serve(h, http.MethodPost, "/api/v1/patients", `{"name":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty name: expected 400, got %d", rec.Code)
	}

	rec = serve(h, http.MethodPost, "/api/v1/notes", `{"patient_id":"`+id+`","template_type":"Letter"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad template: expected 400, got %d", rec.Code)
	}

	rec = serve(h, http.MethodDelete, "/api/v1/patients/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", rec.Code)
	}
	rec = serve(h, http.MethodGet, "/api/v1/patients/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: expected 404, got %d", rec.Code)
	}

	rec = serve(h, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), "mednote_store_request_duration_seconds") {
		t.Error("expected store latency metrics after API calls")
	}
}

func TestServer_ChangeStream(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t))
	defer srv.Close()

	conn, _, err := gorillawebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	// Registration happens after the handshake returns.
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/v1/patients", "application/json", strings.NewReader(`{"name":"Jane Doe"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev websocket.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != websocket.EventCreated || ev.Resource != websocket.ResourcePatient || ev.ResourceID == "" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()
	want := map[string]bool{"serve": false, "migrate": false, "tenant": false, "token": false, "patients": false, "notes": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestWithSession_WrapsErrors(t *testing.T) {
	localEnv(t)
	_, _, err := run(t, "patients", "whatsapp", "nobody")
	if err == nil || !strings.Contains(err.Error(), "mednote patients whatsapp") {
		t.Errorf("expected command path in error, got %v", err)
	}
	if errors.Is(err, errNotConfirmed) {
		t.Error("unexpected confirmation error")
	}
}
