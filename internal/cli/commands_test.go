package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

func newTestContext(t *testing.T, serverURL string) (*Context, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &Context{
		Out:       out,
		Server:    serverURL,
		TokenFile: filepath.Join(t.TempDir(), "config", "token"),
	}, out
}

func TestAuthorizedClientNeedsToken(t *testing.T) {
	ctx, _ := newTestContext(t, "http://localhost:1")
	if _, err := ctx.AuthorizedClient(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}

	if err := ctx.saveToken("saved-token"); err != nil {
		t.Fatalf("save token: %v", err)
	}
	info, err := os.Stat(ctx.TokenFile)
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected token file mode 0600, got %v", info.Mode().Perm())
	}

	api, err := ctx.AuthorizedClient()
	if err != nil {
		t.Fatalf("authorized client: %v", err)
	}
	if api.Token() != "saved-token" {
		t.Fatalf("expected saved token, got %q", api.Token())
	}

	ctx.Token = "explicit-token"
	api, err = ctx.AuthorizedClient()
	if err != nil {
		t.Fatalf("authorized client: %v", err)
	}
	if api.Token() != "explicit-token" {
		t.Fatalf("expected explicit token to win, got %q", api.Token())
	}
}

func TestParseItemFlag(t *testing.T) {
	item, err := parseItemFlag("rice:45:4")
	if err != nil {
		t.Fatalf("parseItemFlag: %v", err)
	}
	if item.Name != "rice" || item.Carbs != "45" || item.Protein != "4" || item.Fat != "" {
		t.Fatalf("unexpected item %+v", item)
	}

	for _, raw := range []string{"", ":10", "a:1:2:3:4:5"} {
		if _, err := parseItemFlag(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestResolveMedication(t *testing.T) {
	catalog := record.NewCatalog([]record.Medication{{ID: "med-1", Name: "Metformin", Dose: "500mg"}})

	cases := map[string]string{
		"med-1":     "med-1",
		"metformin": "med-1",
		"aspirin":   "aspirin",
	}
	for raw, want := range cases {
		if got := resolveMedication(catalog, raw); got != want {
			t.Fatalf("resolveMedication(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestLogCommandEndToEnd(t *testing.T) {
	server := newTestServer(t)
	ctx, out := newTestContext(t, server.URL)

	register := &RegisterCmd{Email: "cli@example.com", Password: "StrongPass1"}
	if err := register.Run(ctx); err != nil {
		t.Fatalf("register: %v", err)
	}

	logGlucose := &LogCmd{Type: "glucose", Mode: "manual", Value: "8.5", Unit: "mmol/L", Context: "before_meal"}
	if err := logGlucose.Run(ctx); err != nil {
		t.Fatalf("log glucose: %v", err)
	}
	if !strings.Contains(out.String(), "8.5 mmol/L") {
		t.Fatalf("expected confirmation with summary, got %q", out.String())
	}

	logPressure := &LogCmd{Type: "blood-pressure", Mode: "voice", Transcript: "120 over 80"}
	if err := logPressure.Run(ctx); err != nil {
		t.Fatalf("log blood pressure: %v", err)
	}

	out.Reset()
	if err := (&FeedCmd{Limit: 20, Pages: 1}).Run(ctx); err != nil {
		t.Fatalf("feed: %v", err)
	}
	if !strings.Contains(out.String(), "8.5 mmol/L") || !strings.Contains(out.String(), "Glucose") {
		t.Fatalf("expected glucose entry in feed, got %q", out.String())
	}
	if !strings.Contains(out.String(), "120/80 mmHg") || !strings.Contains(out.String(), "voice") {
		t.Fatalf("expected voice blood pressure entry in feed, got %q", out.String())
	}

	exported := filepath.Join(t.TempDir(), "logs.csv")
	if err := (&ExportCmd{Output: exported}).Run(ctx); err != nil {
		t.Fatalf("export: %v", err)
	}
	content, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(content)), "\n"); len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", content)
	}
}

func TestLogMedicationRequiresSetup(t *testing.T) {
	server := newTestServer(t)
	ctx, out := newTestContext(t, server.URL)

	if err := (&RegisterCmd{Email: "meds@example.com", Password: "StrongPass1"}).Run(ctx); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := (&LogCmd{Type: "medication", Mode: "manual", Medication: "metformin", Quantity: "1"}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "medications add") {
		t.Fatalf("expected setup hint, got %v", err)
	}

	if err := (&MedicationsAddCmd{Name: "Metformin", Dose: "500mg"}).Run(ctx); err != nil {
		t.Fatalf("add medication: %v", err)
	}
	if err := (&LogCmd{Type: "medication", Mode: "manual", Medication: "metformin", Quantity: "2"}).Run(ctx); err != nil {
		t.Fatalf("log medication: %v", err)
	}
	if !strings.Contains(out.String(), "2 × Metformin") {
		t.Fatalf("expected medication confirmation, got %q", out.String())
	}

	out.Reset()
	if err := (&MedicationsListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list medications: %v", err)
	}
	if !strings.Contains(out.String(), "Metformin") {
		t.Fatalf("expected Metformin in list, got %q", out.String())
	}
}

func TestLogRejectsUnsupportedMode(t *testing.T) {
	ctx, _ := newTestContext(t, "http://localhost:1")
	ctx.Token = "token"

	err := (&LogCmd{Type: "medication", Mode: "photo", Image: "pills.jpg"}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "cannot be captured") {
		t.Fatalf("expected medication photo capture to be rejected, got %v", err)
	}
}
