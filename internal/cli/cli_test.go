package cli_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/optima-study/optima/internal/cli"
	"github.com/optima-study/optima/internal/infrastructure/config"
)

const (
	cellBiology = `{"material":{"id":1,"title":"Cell Biology","content":"Cells are the unit of life.","file_type":"text","uploaded_at":"2024-02-01T09:00:00"},
"generated_data":{"summary":"Cells are small.","quiz_questions":"[{\"question\":\"Powerhouse of the cell?\",\"type\":\"multiple_choice\",\"options\":[\"Nucleus\",\"Mitochondria\"],\"correct_answer\":\"Mitochondria\"}]","key_concepts":null}}`
	organicChemistry = `{"material":{"id":2,"title":"Organic Chemistry","content":"Alkanes","file_type":"pdf","uploaded_at":"2024-02-01T10:00:00"},"generated_data":null}`
	uploadedNotes    = `{"id":3,"title":"Notes","content":"photosynthesis","file_type":"text","uploaded_at":"2024-02-02T10:00:00"}`
)

// fakeBackend answers the subset of the API the commands use.
type fakeBackend struct {
	mu        sync.Mutex
	deleted   []string
	notesSeen int
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct{ Email, Password string }
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"Incorrect email or password"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"access_token":"tok-1","token_type":"bearer"}`)
	})
	mux.HandleFunc("GET /auth/me", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":7,"username":"ada","email":"ada@example.com","is_active":true,"created_at":"2024-01-01T00:00:00"}`)
	}))
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"healthy"}`)
	})

	mux.HandleFunc("GET /materials/get-history", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, "["+cellBiology+","+organicChemistry+"]")
	}))
	mux.HandleFunc("GET /materials/{id}", b.authed(func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "1":
			writeJSON(w, http.StatusOK, cellBiology)
		case "2":
			writeJSON(w, http.StatusOK, organicChemistry)
		case "3":
			b.mu.Lock()
			b.notesSeen++
			seen := b.notesSeen
			b.mu.Unlock()
			if seen < 3 {
				writeJSON(w, http.StatusOK, `{"material":`+uploadedNotes+`,"generated_data":null}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"material":`+uploadedNotes+`,"generated_data":{"summary":"Light to sugar."}}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"detail":"Material not found"}`)
		}
	}))
	mux.HandleFunc("DELETE /materials/{id}", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.deleted = append(b.deleted, r.PathValue("id"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("POST /materials/upload-text", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, uploadedNotes)
	}))

	return mux
}

func (b *fakeBackend) deletedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

func (b *fakeBackend) notesFetches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notesSeen
}

func (b *fakeBackend) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"Not authenticated"}`)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

type harness struct {
	t       *testing.T
	server  *httptest.Server
	backend *fakeBackend
	cfg     config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := &fakeBackend{}
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	return &harness{
		t:       t,
		server:  srv,
		backend: b,
		cfg: config.Config{
			APIURL:        srv.URL,
			Timeout:       5 * time.Second,
			UploadTimeout: 5 * time.Second,
			DBPath:        filepath.Join(t.TempDir(), "optima.db"),
			Poll: config.PollConfig{
				Interval: 5 * time.Millisecond,
				Warmup:   time.Millisecond,
				Settle:   time.Millisecond,
				MaxWait:  5 * time.Second,
			},
			LogLevel:  "warn",
			LogFormat: "text",
		},
	}
}

// run executes one command line as a fresh process would.
func (h *harness) run(stdin string, args ...string) (stdout, stderr string, code int) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	cfg := h.cfg
	app := cli.NewApp(&cfg, slog.New(slog.DiscardHandler), cli.Streams{
		In:  strings.NewReader(stdin),
		Out: &out,
		Err: &errOut,
	})
	code = cli.Execute(h.t.Context(), app, args)
	return out.String(), errOut.String(), code
}

func (h *harness) login() {
	h.t.Helper()
	if out, errOut, code := h.run("", "login", "-e", "ada@example.com", "-p", "secret"); code != 0 {
		h.t.Fatalf("login failed (%d): %s %s", code, out, errOut)
	}
}

func TestLogin_Whoami(t *testing.T) {
	h := newHarness(t)

	out, _, code := h.run("ada@example.com\nsecret\n", "login")
	if code != 0 || !strings.Contains(out, "Signed in as ada (ada@example.com)") {
		t.Fatalf("unexpected login output (%d): %q", code, out)
	}

	out, _, code = h.run("", "whoami")
	if code != 0 || !strings.Contains(out, "ada") {
		t.Errorf("unexpected whoami output (%d): %q", code, out)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)

	_, errOut, code := h.run("", "login", "-e", "ada@example.com", "-p", "nope")
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(errOut, "Incorrect email or password") {
		t.Errorf("expected backend detail on stderr, got %q", errOut)
	}
}

func TestSessionRequired(t *testing.T) {
	h := newHarness(t)

	_, errOut, code := h.run("", "dashboard")
	if code != 1 || !strings.Contains(errOut, "not signed in") {
		t.Errorf("expected sign-in prompt, got %d %q", code, errOut)
	}
}

func TestHistory_FilterAndOffline(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, code := h.run("", "history")
	if code != 0 {
		t.Fatalf("history failed: %q", out)
	}
	if strings.Index(out, "Organic Chemistry") > strings.Index(out, "Cell Biology") {
		t.Errorf("expected newest first:\n%s", out)
	}

	out, _, _ = h.run("", "history", "--search", "chem")
	if !strings.Contains(out, "Organic Chemistry") || strings.Contains(out, "Cell Biology") {
		t.Errorf("unexpected filtered history:\n%s", out)
	}

	out, _, _ = h.run("", "history", "--type", "pdf")
	if strings.Contains(out, "Cell Biology") {
		t.Errorf("type filter kept a text material:\n%s", out)
	}

	h.server.Close()
	out, errOut, code := h.run("", "history")
	if code != 0 {
		t.Fatalf("expected cached history, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "offline") || !strings.Contains(out, "Cell Biology") {
		t.Errorf("unexpected offline history:\n%s", out)
	}
	if !strings.Contains(errOut, "Cannot connect to server") {
		t.Errorf("expected a connection notice, got %q", errOut)
	}
}

func TestShow_Tabs(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, code := h.run("", "show", "1", "--tab", "summary")
	if code != 0 || !strings.Contains(out, "Cells are small.") {
		t.Errorf("unexpected summary (%d):\n%s", code, out)
	}
	if !strings.Contains(out, "tabs: content, summary, quiz") {
		t.Errorf("unexpected tab list:\n%s", out)
	}

	_, errOut, code := h.run("", "show", "2", "--tab", "quiz")
	if code != 1 || !strings.Contains(errOut, "no quiz for this material yet") {
		t.Errorf("expected missing tab error, got %d %q", code, errOut)
	}

	_, errOut, code = h.run("", "show", "99")
	if code != 1 || !strings.Contains(errOut, "Not found") {
		t.Errorf("expected not found, got %d %q", code, errOut)
	}
}

func TestDelete_Confirmation(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, code := h.run("n\n", "delete", "1")
	if code != 0 || !strings.Contains(out, "Cancelled") {
		t.Fatalf("unexpected output (%d): %q", code, out)
	}
	if ids := h.backend.deletedIDs(); len(ids) != 0 {
		t.Fatalf("declined delete reached the backend: %v", ids)
	}

	out, _, code = h.run("", "delete", "1", "--yes")
	if code != 0 || !strings.Contains(out, "Material deleted successfully") {
		t.Fatalf("unexpected output (%d): %q", code, out)
	}
	if ids := h.backend.deletedIDs(); len(ids) != 1 || ids[0] != "1" {
		t.Errorf("expected one backend delete, got %v", ids)
	}
}

func TestUpload_TextWatchesUntilReady(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, errOut, code := h.run("", "upload", "--title", "Notes", "--text", "photosynthesis")
	if code != 0 {
		t.Fatalf("upload failed (%d): %s", code, errOut)
	}
	if !strings.Contains(out, `Uploaded "Notes" (id 3)`) || !strings.Contains(out, "Ready: Notes") {
		t.Errorf("unexpected upload output:\n%s", out)
	}
	if !strings.Contains(errOut, "100%") {
		t.Errorf("expected progress to reach 100%%, got %q", errOut)
	}
	if n := h.backend.notesFetches(); n < 3 {
		t.Errorf("expected polling until the third response, saw %d", n)
	}
}

func TestUpload_ValidationNeverReachesBackend(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, errOut, code := h.run("", "upload", "--text", "photosynthesis")
	if code != 1 || !strings.Contains(errOut, "invalid title") {
		t.Errorf("expected title validation error, got %d %q", code, errOut)
	}
}

func TestQuiz_TakeAndRecord(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, errOut, code := h.run("b\nn\n", "quiz", "1", "--no-timer")
	if code != 0 {
		t.Fatalf("quiz failed (%d): %s", code, errOut)
	}
	if !strings.Contains(out, "A) Nucleus") || !strings.Contains(out, "B) Mitochondria") {
		t.Errorf("expected lettered options:\n%s", out)
	}
	if !strings.Contains(out, "Score: 1/1 (100%) Excellent work!") {
		t.Errorf("unexpected score:\n%s", out)
	}

	out, _, _ = h.run("", "attempts", "1")
	if !strings.Contains(out, "1/1 (100%)") {
		t.Errorf("expected recorded attempt:\n%s", out)
	}
}

func TestQuiz_QuitHasNoScore(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, code := h.run(":q\n", "quiz", "1", "--no-timer")
	if code != 0 || !strings.Contains(out, "Quiz cancelled") || strings.Contains(out, "Score:") {
		t.Errorf("unexpected output (%d):\n%s", code, out)
	}

	out, _, _ = h.run("", "attempts", "1")
	if !strings.Contains(out, "No quiz attempts yet.") {
		t.Errorf("cancelled quiz must not be recorded:\n%s", out)
	}
}

func TestLogout_ForgetsSession(t *testing.T) {
	h := newHarness(t)
	h.login()

	if out, _, code := h.run("", "logout"); code != 0 || !strings.Contains(out, "Signed out") {
		t.Fatalf("unexpected logout (%d): %q", code, out)
	}
	if _, errOut, code := h.run("", "whoami"); code != 1 || !strings.Contains(errOut, "not signed in") {
		t.Errorf("expected signed-out state, got %d %q", code, errOut)
	}
}
