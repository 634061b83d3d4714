package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shpitdev/leadfinder/internal/exa"
	"github.com/shpitdev/leadfinder/internal/mockcrm"
	"github.com/shpitdev/leadfinder/internal/usage"
)

// cleanEnv clears every variable the CLI reads so the host environment cannot leak in.
func cleanEnv(t *testing.T) string {
	t.Helper()
	for _, v := range []string{
		"EXA_API_KEY", "EXA_BASE_URL",
		"GHL_ACCESS_TOKEN", "GHL_LOCATION_ID", "GHL_BASE_URL",
		"GHL_CLIENT_ID", "GHL_CLIENT_SECRET", "GHL_REDIRECT_URL",
		"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "GEMINI_GROUNDED",
		"LEADFINDER_ACCOUNT", "LEADFINDER_TABLES",
		"WORKERS", "MAX_RETRIES", "REQUEST_TIMEOUT", "RATE_LIMIT_RPS", "FAIL_FAST", "IMPORT_DELAY",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(v, "")
	}
	db := filepath.Join(t.TempDir(), "usage.db")
	t.Setenv("LEADFINDER_DB", db)
	t.Setenv("LOG_LEVEL", "error")
	return db
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExecute_ExitCodes(t *testing.T) {
	cleanEnv(t)

	cases := []struct {
		name    string
		args    []string
		code    int
		wantErr string
	}{
		{name: "unknown command", args: []string{"serch", "x"}, code: 2, wantErr: `unknown command "serch"`},
		{name: "unknown flag", args: []string{"search", "--bogus", "x"}, code: 2, wantErr: "unknown flag"},
		{name: "missing query", args: []string{"search"}, code: 2, wantErr: "config error"},
		{name: "missing exa key", args: []string{"search", "dentists"}, code: 2, wantErr: "EXA_API_KEY is required"},
		{name: "bad format", args: []string{"search", "--format", "xml", "dentists"}, code: 2, wantErr: "config error"},
		{name: "enrich without output", args: []string{"enrich", "in.csv"}, code: 2, wantErr: "--output is required"},
		{name: "import without list", args: []string{"import", "in.csv"}, code: 2, wantErr: "--list is required"},
		{name: "unknown plan", args: []string{"usage", "set-plan", "gold"}, code: 2, wantErr: "config error"},
		{name: "bad month", args: []string{"usage", "show", "--month", "March"}, code: 2, wantErr: "invalid --month"},
		{name: "bad log level", args: []string{"--log-level", "loud", "version"}, code: 2, wantErr: "config error"},
		{name: "auth without client", args: []string{"auth", "url"}, code: 2, wantErr: "client id and secret are required"},
		{name: "version", args: []string{"version"}, code: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := run(t, tc.args...)
			if code != tc.code {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, tc.code, stderr)
			}
			if tc.wantErr != "" && !strings.Contains(stderr, tc.wantErr) {
				t.Fatalf("stderr = %q, want it to contain %q", stderr, tc.wantErr)
			}
		})
	}
}

func TestExecute_MalformedEnvIsConfigError(t *testing.T) {
	cleanEnv(t)
	t.Setenv("WORKERS", "lots")

	code, _, stderr := run(t, "version")
	if code != 2 || !strings.Contains(stderr, "WORKERS") {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}
}

func TestExecute_RunFailureRedactsSecrets(t *testing.T) {
	cleanEnv(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(ts.Close)
	t.Setenv("EXA_API_KEY", "exa-secret-key")
	t.Setenv("EXA_BASE_URL", ts.URL)

	code, _, stderr := run(t, "search", "dentists", "--max-retries", "0")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1 (stderr: %s)", code, stderr)
	}
	if strings.Contains(stderr, "exa-secret-key") {
		t.Fatalf("stderr leaks the api key: %s", stderr)
	}
}

func TestSearchWritesCSVAndMetersUsage(t *testing.T) {
	cleanEnv(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(exa.SearchResponse{Results: []exa.Result{{
			Title: "Oak Legal | Denver Law Firm",
			URL:   "https://oak.law/",
			Text:  "Oak Legal is a Denver law firm. Call 303-555-0199 or write to info@oak.law.",
		}}})
	}))
	t.Cleanup(ts.Close)
	t.Setenv("EXA_API_KEY", "exa-key")
	t.Setenv("EXA_BASE_URL", ts.URL)

	out := filepath.Join(t.TempDir(), "leads.csv")
	code, _, stderr := run(t, "search", "law firms in Denver", "-o", out, "--seed", "7", "--account", "acct_1")
	if code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, stderr)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "info@oak.law") {
		t.Fatalf("csv missing extracted email:\n%s", b)
	}

	code, stdout, stderr := run(t, "usage", "show", "--json", "--account", "acct_1")
	if code != 0 {
		t.Fatalf("usage show exit code = %d (stderr: %s)", code, stderr)
	}
	var rep usageReport
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("decode usage report: %v\n%s", err, stdout)
	}
	if rep.Subscription.PlanID != usage.PlanTrial || rep.Subscription.SearchesUsed != 1 {
		t.Fatalf("subscription = %+v", rep.Subscription)
	}
	if rep.Searches.TotalSearches != 1 || rep.Searches.Searches[0].Query != "law firms in Denver" {
		t.Fatalf("searches = %+v", rep.Searches)
	}
}

func TestUsagePlansAndSetPlan(t *testing.T) {
	cleanEnv(t)

	code, stdout, _ := run(t, "usage", "plans")
	if code != 0 || !strings.Contains(stdout, "enterprise") {
		t.Fatalf("plans: code=%d stdout=%s", code, stdout)
	}

	code, stdout, stderr := run(t, "usage", "set-plan", "pro", "--white-label", "pro_wl", "--account", "acct_2")
	if code != 0 {
		t.Fatalf("set-plan: code=%d stderr=%s", code, stderr)
	}
	if !strings.Contains(stdout, "acct_2 is now on") {
		t.Fatalf("set-plan stdout = %q", stdout)
	}

	code, stdout, _ = run(t, "usage", "show", "--account", "acct_2")
	if code != 0 || !strings.Contains(stdout, "Contact allowance:") {
		t.Fatalf("show: code=%d stdout=%s", code, stdout)
	}
}

func TestAuthExchangeThenImportWithStoredToken(t *testing.T) {
	cleanEnv(t)
	crm := mockcrm.New()
	crm.RequireBearerToken("never-used")
	crm.RegisterOAuthClient("client-1", "secret-1")
	crm.IssueCode("code-1", "loc_9", "user_1")
	ts := httptest.NewServer(crm.Handler())
	t.Cleanup(ts.Close)
	t.Setenv("GHL_BASE_URL", ts.URL)
	t.Setenv("GHL_CLIENT_ID", "client-1")
	t.Setenv("GHL_CLIENT_SECRET", "secret-1")

	code, stdout, stderr := run(t, "auth", "url", "--state", "xyz")
	if code != 0 || !strings.Contains(stdout, "client_id=client-1") || !strings.Contains(stdout, "state=xyz") {
		t.Fatalf("auth url: code=%d stdout=%s stderr=%s", code, stdout, stderr)
	}

	code, stdout, stderr = run(t, "auth", "exchange", "code-1")
	if code != 0 || !strings.Contains(stdout, "authorized location loc_9") {
		t.Fatalf("auth exchange: code=%d stdout=%s stderr=%s", code, stdout, stderr)
	}

	in := filepath.Join(t.TempDir(), "contacts.csv")
	csv := "name,email,phone\nOak Legal,info@oak.law,\nNo Contact Co,,\n"
	if err := os.WriteFile(in, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}
	code, stdout, stderr = run(t, "import", in, "--list", "Denver Law", "--location", "loc_9", "--delay", "0s")
	if code != 0 {
		t.Fatalf("import: code=%d stderr=%s", code, stderr)
	}
	if !strings.Contains(stdout, "1 successful") {
		t.Fatalf("import stdout = %q", stdout)
	}
	contacts := crm.Contacts()
	if len(contacts) != 1 || contacts[0].Email != "info@oak.law" || contacts[0].LocationID != "loc_9" {
		t.Fatalf("contacts = %+v", contacts)
	}

	code, stdout, stderr = run(t, "usage", "imports", "--location", "loc_9", "--json")
	if code != 0 {
		t.Fatalf("usage imports: code=%d stderr=%s", code, stderr)
	}
	var history []usage.ImportEntry
	if err := json.Unmarshal([]byte(stdout), &history); err != nil {
		t.Fatalf("decode import history: %v\n%s", err, stdout)
	}
	if len(history) != 1 || history[0].ListName != "Denver Law" || history[0].Successful != 1 || history[0].Identifier != "loc_9" {
		t.Fatalf("import history = %+v", history)
	}

	code, stdout, _ = run(t, "usage", "imports", "--location", "loc_9")
	if code != 0 || !strings.Contains(stdout, "Denver Law") || !strings.Contains(stdout, "1 of 1") {
		t.Fatalf("usage imports table: code=%d stdout=%s", code, stdout)
	}
}

func TestUsageCancelBlocksSearch(t *testing.T) {
	cleanEnv(t)
	var exaCalls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		exaCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(exa.SearchResponse{})
	}))
	t.Cleanup(ts.Close)
	t.Setenv("EXA_API_KEY", "exa-key")
	t.Setenv("EXA_BASE_URL", ts.URL)

	if code, _, stderr := run(t, "usage", "cancel", "--account", "acct_3"); code != 1 || !strings.Contains(stderr, "no subscription found") {
		t.Fatalf("cancel without subscription: code=%d stderr=%s", code, stderr)
	}
	if code, _, stderr := run(t, "usage", "set-plan", "pro", "--account", "acct_3"); code != 0 {
		t.Fatalf("set-plan: code=%d stderr=%s", code, stderr)
	}
	code, stdout, stderr := run(t, "usage", "cancel", "--account", "acct_3")
	if code != 0 || !strings.Contains(stdout, "acct_3 (Pro Plan) is canceled") {
		t.Fatalf("cancel: code=%d stdout=%q stderr=%s", code, stdout, stderr)
	}

	code, _, stderr = run(t, "search", "dentists", "--account", "acct_3", "-o", filepath.Join(t.TempDir(), "out.csv"))
	if code != 1 || !strings.Contains(stderr, "subscription is canceled") {
		t.Fatalf("search after cancel: code=%d stderr=%s", code, stderr)
	}
	if n := exaCalls.Load(); n != 0 {
		t.Fatalf("exa called %d times after cancel", n)
	}

	code, stdout, _ = run(t, "usage", "show", "--account", "acct_3")
	if code != 0 || !strings.Contains(stdout, "(canceled)") {
		t.Fatalf("show after cancel: code=%d stdout=%s", code, stdout)
	}
}
