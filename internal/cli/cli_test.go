package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/lazypower/larder/internal/config"
	"github.com/lazypower/larder/internal/engine"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "larder dev") {
		t.Errorf("output = %q, want larder dev prefix", out)
	}
}

func TestRunThenHistory(t *testing.T) {
	dir := t.TempDir()
	orders := filepath.Join(dir, "orders.json")
	ledgerPath := filepath.Join(dir, "ledger.json")
	dbPath := filepath.Join(dir, "larder.db")
	envPath := filepath.Join(dir, "absent.env")

	payload := `[
		{"id": "a", "name": "Soup", "temp": "hot", "shelfLife": 60, "decayRate": 0.5},
		{"id": "b", "name": "Salad", "temp": "cold", "shelfLife": 60, "decayRate": 0.5},
		{"id": "c", "name": "Ice", "temp": "frozen", "shelfLife": 60, "decayRate": 0.5}
	]`
	if err := os.WriteFile(orders, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "run", "-q",
		"--env-file", envPath,
		"--db", dbPath,
		"--orders", orders,
		"--ledger", ledgerPath,
		"--rate", "1ms", "--min", "1ms", "--max", "2ms",
	)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}

	var runID string
	for _, line := range strings.Split(out, "\n") {
		if fields := strings.Fields(line); len(fields) == 2 && fields[0] == "run" {
			runID = fields[1]
		}
	}
	if runID == "" {
		t.Fatalf("no run id in summary:\n%s", out)
	}
	if !strings.Contains(out, "placed   3") || !strings.Contains(out, "picked   3") {
		t.Errorf("summary missing counts:\n%s", out)
	}

	data, err := os.ReadFile(ledgerPath)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	var records []engine.Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if len(records) != 6 {
		t.Errorf("ledger has %d records, want 6", len(records))
	}

	out, err = execute(t, "history", "--env-file", envPath, "--db", dbPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, runID) || !strings.Contains(out, "file") {
		t.Errorf("history does not list run %s:\n%s", runID, out)
	}

	out, err = execute(t, "history", runID, "--env-file", envPath, "--db", dbPath)
	if err != nil {
		t.Fatalf("history %s: %v", runID, err)
	}
	for _, want := range []string{"place", "pickup", "heater", "cooler", "freezer"} {
		if !strings.Contains(out, want) {
			t.Errorf("run detail missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "history", "no-such-run", "--env-file", envPath, "--db", dbPath); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestApplyServeFlags(t *testing.T) {
	newCmd := func() *cobra.Command {
		c := &cobra.Command{Use: "serve"}
		c.Flags().String("bind", "", "")
		c.Flags().Int("port", 0, "")
		return c
	}

	cmd := newCmd()
	if err := cmd.ParseFlags([]string{"--bind", "0.0.0.0", "--port", "9001"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	if err := applyServeFlags(cmd, &cfg); err != nil {
		t.Fatalf("applyServeFlags: %v", err)
	}
	if got := cfg.ListenAddr(); got != "0.0.0.0:9001" {
		t.Errorf("ListenAddr = %q, want 0.0.0.0:9001", got)
	}

	cmd = newCmd()
	if err := cmd.ParseFlags([]string{"--port", "0"}); err != nil {
		t.Fatal(err)
	}
	cfg = config.Default()
	if err := applyServeFlags(cmd, &cfg); err == nil {
		t.Error("port 0: expected validation error")
	}

	// A flag registered with the wrong type surfaces the lookup error.
	cmd = &cobra.Command{Use: "serve"}
	cmd.Flags().String("port", "", "")
	if err := cmd.ParseFlags([]string{"--port", "9001"}); err != nil {
		t.Fatal(err)
	}
	cfg = config.Default()
	if err := applyServeFlags(cmd, &cfg); err == nil {
		t.Error("mistyped port flag: expected error")
	}
}
