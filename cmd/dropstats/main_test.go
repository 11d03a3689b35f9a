package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/dropstats/internal/model"
)

const testDataset = `{
  "chapters": [
    {"id": "main_01", "name": "Chapter 1", "type": "MAINLINE", "stages": [
      {"id": "main_01-07", "code": "1-7", "category": "main", "apCost": 6},
      {"id": "main_01-10", "code": "1-10", "category": "main", "apCost": 9}
    ]},
    {"id": "weekly", "name": "Supplies", "type": "WEEKLY", "stages": [
      {"id": "wk_1", "code": "CE-1", "category": "sub", "apCost": 10}
    ]}
  ],
  "items": [
    {"id": "30012", "name": "Orirock", "sortId": 1, "itemType": "MATERIAL"}
  ],
  "matrix": [
    {"stageId": "wk_1", "itemId": "30012", "times": 100, "quantity": 200},
    {"stageId": "main_01-10", "itemId": "30012", "times": 100, "quantity": 50},
    {"stageId": "main_01-07", "itemId": "30012", "times": 100, "quantity": 100}
  ]
}`

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImportAndTable(t *testing.T) {
	dir := setupEnv(t)
	dataPath := filepath.Join(dir, "drops.json")
	if err := os.WriteFile(dataPath, []byte(testDataset), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	db := filepath.Join(dir, "test.db")

	if _, err := runCLI(t, "import", dataPath, "--db", db); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := runCLI(t, "table", "--item", "30012", "--sort", "code", "--db", db)
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	i17 := strings.Index(out, "1-7 ")
	i110 := strings.Index(out, "1-10")
	iCE := strings.Index(out, "CE-1")
	if i17 < 0 || i110 < 0 || iCE < 0 || !(i17 < i110 && i110 < iCE) {
		t.Fatalf("expected 1-7, 1-10, CE-1 order:\n%s", out)
	}
	if !strings.Contains(out, "Code ▲") {
		t.Fatalf("expected sort marker in header:\n%s", out)
	}
	if !strings.Contains(out, "Best AP per item: CE-1 (5.00)") {
		t.Fatalf("expected best stages line:\n%s", out)
	}

	xlsx := filepath.Join(dir, "out.xlsx")
	if _, err := runCLI(t, "table", "--item", "30012", "--sort", "expectation", "--dir", "desc", "--xlsx", xlsx, "--db", db); err != nil {
		t.Fatalf("table xlsx: %v", err)
	}
	if _, err := os.Stat(xlsx); err != nil {
		t.Fatalf("expected xlsx file: %v", err)
	}
}

func TestTableRejectsBadFlags(t *testing.T) {
	dir := setupEnv(t)
	db := filepath.Join(dir, "test.db")
	cases := [][]string{
		{"table", "--db", db},
		{"table", "--item", "a", "--stage", "b", "--db", db},
		{"table", "--item", "a", "--sort", "bogus", "--db", db},
		{"table", "--stage", "a", "--sort", "code", "--db", db},
		{"table", "--item", "a", "--source", "friends", "--db", db},
		{"table", "--item", "a", "--sort", "rate", "--dir", "up", "--db", db},
	}
	for _, args := range cases {
		if _, err := runCLI(t, args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestUploadAndPersonalTable(t *testing.T) {
	dir := setupEnv(t)
	dataPath := filepath.Join(dir, "drops.json")
	if err := os.WriteFile(dataPath, []byte(testDataset), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	db := filepath.Join(dir, "test.db")
	if _, err := runCLI(t, "import", dataPath, "--db", db); err != nil {
		t.Fatalf("import: %v", err)
	}

	if _, err := runCLI(t, "table", "--item", "30012", "--source", "personal", "--db", db); err == nil ||
		!strings.Contains(err.Error(), "dropstats upload") {
		t.Fatalf("expected upload hint, got %v", err)
	}

	upload := filepath.Join(dir, "personal.json")
	body := `{"stageTimes": {"main_01-07": 4}, "dropMatrix": {"main_01-07": {"30012": 6}}}`
	if err := os.WriteFile(upload, []byte(body), 0o600); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	if _, err := runCLI(t, "upload", upload, "--db", db); err != nil {
		t.Fatalf("upload: %v", err)
	}
	out, err := runCLI(t, "table", "--item", "30012", "--source", "personal", "--db", db)
	if err != nil {
		t.Fatalf("personal table: %v", err)
	}
	if !strings.Contains(out, "150.00%") || strings.Contains(out, "CE-1") {
		t.Fatalf("unexpected personal table:\n%s", out)
	}
}

func TestItemsAndStages(t *testing.T) {
	dir := setupEnv(t)
	dataPath := filepath.Join(dir, "drops.json")
	if err := os.WriteFile(dataPath, []byte(testDataset), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	db := filepath.Join(dir, "test.db")
	if _, err := runCLI(t, "items", "--db", db); err == nil {
		t.Fatalf("expected error before import")
	}
	if _, err := runCLI(t, "import", dataPath, "--db", db); err != nil {
		t.Fatalf("import: %v", err)
	}
	out, err := runCLI(t, "items", "--db", db)
	if err != nil || !strings.Contains(out, "30012") || !strings.Contains(out, "Orirock") {
		t.Fatalf("unexpected items output %q (%v)", out, err)
	}
	out, err = runCLI(t, "stages", "--db", db)
	if err != nil || !strings.Contains(out, "Supplies") || !strings.Contains(out, "CE-1") {
		t.Fatalf("unexpected stages output %q (%v)", out, err)
	}
}

func TestConfigOverridesDefaults(t *testing.T) {
	dir := setupEnv(t)
	cfgDir := filepath.Join(dir, "config", "dropstats")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg := "[view]\nsort = \"bogus\"\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	db := filepath.Join(dir, "test.db")
	if _, err := runCLI(t, "table", "--item", "a", "--db", db); err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected config sort to apply, got %v", err)
	}
	// Flags win over the config file.
	if _, err := runCLI(t, "table", "--item", "a", "--sort", "code", "--db", db); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found for unknown item, got %v", err)
	}
}

func TestConfigEmptyDirectionMeansAsc(t *testing.T) {
	dir := setupEnv(t)
	cfgDir := filepath.Join(dir, "config", "dropstats")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg := "[view]\nsort = \"code\"\ndirection = \"\"\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	dataPath := filepath.Join(dir, "drops.json")
	if err := os.WriteFile(dataPath, []byte(testDataset), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	db := filepath.Join(dir, "test.db")
	if _, err := runCLI(t, "import", dataPath, "--db", db); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := runCLI(t, "table", "--item", "30012", "--db", db)
	if err != nil {
		t.Fatalf("table with empty config direction: %v", err)
	}
	i17 := strings.Index(out, "1-7 ")
	i110 := strings.Index(out, "1-10")
	iCE := strings.Index(out, "CE-1")
	if i17 < 0 || i110 < 0 || iCE < 0 || !(i17 < i110 && i110 < iCE) {
		t.Fatalf("expected ascending code order:\n%s", out)
	}
	if !strings.Contains(out, "Code ▲") {
		t.Fatalf("expected ascending marker in header:\n%s", out)
	}
}

func TestParseSource(t *testing.T) {
	tests := map[string]model.DataSource{
		"global":    model.SourceGlobal,
		" Personal": model.SourcePersonal,
	}
	for in, want := range tests {
		got, err := parseSource(in)
		if err != nil || got != want {
			t.Fatalf("%q: expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := parseSource(""); err == nil {
		t.Fatalf("expected error for empty source")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if l.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %s", l.GetLevel())
	}
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected log output: %q", buf.String())
	}
	if _, err := newLogger(&buf, "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if l, _ := newLogger(&buf, ""); l.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level by default")
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	tpl := defaultConfigTemplate()
	for _, want := range []string{"[view]", "[parser]", "[data]", "[log]", "expectation"} {
		if !strings.Contains(tpl, want) {
			t.Fatalf("template missing %q", want)
		}
	}
}
