package engine

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confdrift/confdrift/internal/changelog"
	"github.com/confdrift/confdrift/internal/toolcfg"
	"github.com/confdrift/confdrift/internal/tools"
	"github.com/confdrift/confdrift/internal/watch"
)

func newTestEngine(t *testing.T) (*Engine, []tools.Tool) {
	t.Helper()
	registry := tools.AllIn(t.TempDir())
	eng := NewWithTools(t.TempDir(), registry)
	require.NoError(t, eng.Init())
	return eng, registry
}

// editFile simulates an external editor writing a tool config directly,
// bypassing the engine.
func editFile(t *testing.T, registry []tools.Tool, id tools.ID, name, content string) {
	t.Helper()
	tool, ok := tools.ByIDIn(registry, id)
	require.True(t, ok)
	require.NoError(t, os.MkdirAll(tool.ConfigDir, 0700))
	require.NoError(t, os.WriteFile(tool.FilePath(name), []byte(content), 0600))
}

func TestOwnWritesAreNotDrift(t *testing.T) {
	eng, _ := newTestEngine(t)

	require.NoError(t, eng.SaveProfile(tools.ClaudeCode, "work", toolcfg.Values{
		APIKey:  "sk-work-1234567890",
		BaseURL: "https://work.example.com",
	}))

	change, err := eng.ScanOnce(tools.ClaudeCode)
	require.NoError(t, err)
	assert.Nil(t, change, "the engine's own write must not scan as drift")

	require.NoError(t, eng.ActivateProfile(tools.ClaudeCode, "work"))
	change, err = eng.ScanOnce(tools.ClaudeCode)
	require.NoError(t, err)
	assert.Nil(t, change, "profile activation must not scan as drift")
}

func TestExternalEditDetectedAndQueued(t *testing.T) {
	eng, registry := newTestEngine(t)

	require.NoError(t, eng.SaveProfile(tools.ClaudeCode, "work", toolcfg.Values{
		APIKey:  "sk-work-1234567890",
		BaseURL: "https://work.example.com",
	}))

	editFile(t, registry, tools.ClaudeCode, "settings.json",
		`{"env":{"ANTHROPIC_AUTH_TOKEN":"sk-stolen","ANTHROPIC_BASE_URL":"https://work.example.com"}}`)

	change, err := eng.ScanOnce(tools.ClaudeCode)
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.True(t, change.IsSensitive)

	pending := eng.PendingChange(tools.ClaudeCode)
	require.NotNil(t, pending)
	assert.Equal(t, change, pending)

	records, total, err := eng.GetChangeLogPage(1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "claude-code", records[0].Tool)
	assert.Empty(t, records[0].Action, "new record starts pending")
	assert.Contains(t, records[0].ChangedFields, "env.ANTHROPIC_AUTH_TOKEN")
}

func TestAllowAcceptsDrift(t *testing.T) {
	eng, registry := newTestEngine(t)

	require.NoError(t, eng.SaveProfile(tools.ClaudeCode, "work", toolcfg.Values{
		APIKey:  "sk-work-1234567890",
		BaseURL: "https://work.example.com",
	}))
	editFile(t, registry, tools.ClaudeCode, "settings.json",
		`{"env":{"ANTHROPIC_AUTH_TOKEN":"sk-new","ANTHROPIC_BASE_URL":"https://work.example.com"}}`)

	change, err := eng.ScanOnce(tools.ClaudeCode)
	require.NoError(t, err)
	require.NotNil(t, change)

	require.NoError(t, eng.Allow(tools.ClaudeCode))

	assert.Nil(t, eng.PendingChange(tools.ClaudeCode))
	change, err = eng.ScanOnce(tools.ClaudeCode)
	require.NoError(t, err)
	assert.Nil(t, change, "allowed drift must not re-report")

	records, _, err := eng.GetChangeLogPage(1, 10)
	require.NoError(t, err)
	assert.Equal(t, changelog.ActionAllow, records[0].Action)
}

func TestBlockRestoresManagedFieldsOnly(t *testing.T) {
	eng, registry := newTestEngine(t)

	require.NoError(t, eng.SaveProfile(tools.ClaudeCode, "work", toolcfg.Values{
		APIKey:  "sk-work-1234567890",
		BaseURL: "https://work.example.com",
	}))

	// The external edit both tampers with a managed credential and adds
	// a harmless unmanaged field.
	editFile(t, registry, tools.ClaudeCode, "settings.json",
		`{"theme":"dark","env":{"ANTHROPIC_AUTH_TOKEN":"sk-stolen","ANTHROPIC_BASE_URL":"https://work.example.com"}}`)

	change, err := eng.ScanOnce(tools.ClaudeCode)
	require.NoError(t, err)
	require.NotNil(t, change)

	require.NoError(t, eng.Block(tools.ClaudeCode))

	tool, _ := tools.ByIDIn(registry, tools.ClaudeCode)
	adapter, err := toolcfg.New(tool)
	require.NoError(t, err)
	active, err := adapter.Load()
	require.NoError(t, err)
	settings := active["settings.json"]

	env := settings["env"].(map[string]any)
	assert.Equal(t, "sk-work-1234567890", env["ANTHROPIC_AUTH_TOKEN"], "managed field restored")
	assert.Equal(t, "dark", settings["theme"], "unmanaged external addition kept")

	assert.Nil(t, eng.PendingChange(tools.ClaudeCode))
	change, err = eng.ScanOnce(tools.ClaudeCode)
	require.NoError(t, err)
	assert.Nil(t, change, "the restore write must not scan as drift")

	records, _, err := eng.GetChangeLogPage(1, 10)
	require.NoError(t, err)
	assert.Equal(t, changelog.ActionBlock, records[0].Action)
}

// fullScanMode switches the watch config to full mode so non-sensitive
// drift surfaces too, with the background watcher kept off.
func fullScanMode(t *testing.T, eng *Engine) {
	t.Helper()
	cfg, err := eng.GetWatchConfig()
	require.NoError(t, err)
	cfg.Enabled = false
	cfg.Mode = watch.ModeFull
	require.NoError(t, eng.UpdateWatchConfig(cfg))
}

func TestBlockRestoresCodexManagedSettings(t *testing.T) {
	eng, registry := newTestEngine(t)
	fullScanMode(t, eng)

	require.NoError(t, eng.SaveProfile(tools.Codex, "work", toolcfg.Values{
		APIKey:  "sk-codex-1234567890",
		BaseURL: "https://proxy.example.com",
	}))

	// The external edit flips two set-if-missing managed settings and adds
	// an unmanaged one.
	editFile(t, registry, tools.Codex, "config.toml", `model = "gpt-5-codex"
model_reasoning_effort = "low"
network_access = "disabled"
disable_response_storage = true
model_provider = "custom"
sandbox_mode = "workspace-write"

[model_providers.custom]
name = "custom"
base_url = "https://proxy.example.com/v1"
wire_api = "responses"
requires_openai_auth = true
`)

	change, err := eng.ScanOnce(tools.Codex)
	require.NoError(t, err)
	require.NotNil(t, change)

	require.NoError(t, eng.Block(tools.Codex))

	tool, _ := tools.ByIDIn(registry, tools.Codex)
	adapter, err := toolcfg.New(tool)
	require.NoError(t, err)
	active, err := adapter.Load()
	require.NoError(t, err)
	cfg := active["config.toml"]

	assert.Equal(t, "high", cfg["model_reasoning_effort"], "managed setting restored")
	assert.Equal(t, "enabled", cfg["network_access"], "managed setting restored")
	assert.Equal(t, "workspace-write", cfg["sandbox_mode"], "unmanaged external addition kept")

	change, err = eng.ScanOnce(tools.Codex)
	require.NoError(t, err)
	assert.Nil(t, change, "the restore write must not scan as drift")
}

func TestBlockRestoresGeminiSettingsFlags(t *testing.T) {
	eng, registry := newTestEngine(t)
	fullScanMode(t, eng)

	require.NoError(t, eng.SaveProfile(tools.GeminiCLI, "work", toolcfg.Values{
		APIKey:  "gm-work-1234567890",
		BaseURL: "https://gw.example.com",
	}))

	editFile(t, registry, tools.GeminiCLI, "settings.json",
		`{"ide":{"enabled":false},"security":{"auth":{"selectedType":"oauth"}},"theme":"dark"}`)

	change, err := eng.ScanOnce(tools.GeminiCLI)
	require.NoError(t, err)
	require.NotNil(t, change)

	require.NoError(t, eng.Block(tools.GeminiCLI))

	tool, _ := tools.ByIDIn(registry, tools.GeminiCLI)
	adapter, err := toolcfg.New(tool)
	require.NoError(t, err)
	active, err := adapter.Load()
	require.NoError(t, err)
	settings := active["settings.json"]

	ide := settings["ide"].(map[string]any)
	assert.Equal(t, true, ide["enabled"], "managed flag restored")
	security := settings["security"].(map[string]any)
	auth := security["auth"].(map[string]any)
	assert.Equal(t, "gemini-api-key", auth["selectedType"], "managed flag restored")
	assert.Equal(t, "dark", settings["theme"], "unmanaged external addition kept")

	change, err = eng.ScanOnce(tools.GeminiCLI)
	require.NoError(t, err)
	assert.Nil(t, change, "the restore write must not scan as drift")
}

func TestBlockWithoutSnapshotFails(t *testing.T) {
	registry := tools.AllIn(t.TempDir())
	eng := NewWithTools(t.TempDir(), registry)
	// No Init: nothing has been seeded.
	err := eng.Block(tools.ClaudeCode)
	assert.Error(t, err)
}

func TestNewerDriftSupersedesPending(t *testing.T) {
	eng, registry := newTestEngine(t)

	require.NoError(t, eng.SaveProfile(tools.ClaudeCode, "work", toolcfg.Values{
		APIKey:  "sk-work-1234567890",
		BaseURL: "https://work.example.com",
	}))

	editFile(t, registry, tools.ClaudeCode, "settings.json",
		`{"env":{"ANTHROPIC_AUTH_TOKEN":"sk-first","ANTHROPIC_BASE_URL":"https://work.example.com"}}`)
	first, err := eng.ScanOnce(tools.ClaudeCode)
	require.NoError(t, err)
	require.NotNil(t, first)

	editFile(t, registry, tools.ClaudeCode, "settings.json",
		`{"env":{"ANTHROPIC_AUTH_TOKEN":"sk-second","ANTHROPIC_BASE_URL":"https://work.example.com"}}`)
	second, err := eng.ScanOnce(tools.ClaudeCode)
	require.NoError(t, err)
	require.NotNil(t, second)

	pending := eng.PendingChange(tools.ClaudeCode)
	require.NotNil(t, pending)
	assert.Equal(t, second, pending, "only the newest drift stays pending")

	records, total, err := eng.GetChangeLogPage(1, 10)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	assert.Empty(t, records[0].Action)
	assert.Equal(t, changelog.ActionSuperseded, records[1].Action)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	eng, registry := newTestEngine(t)

	ch, cancel := eng.Subscribe()
	defer cancel()

	require.NoError(t, eng.SaveProfile(tools.GeminiCLI, "work", toolcfg.Values{
		APIKey:  "gm-work-1234567890",
		BaseURL: "https://gw.example.com",
	}))
	editFile(t, registry, tools.GeminiCLI, ".env",
		"GEMINI_API_KEY=gm-tampered\nGOOGLE_GEMINI_BASE_URL=https://gw.example.com\nGEMINI_MODEL=gemini-2.5-pro\n")

	change, err := eng.ScanOnce(tools.GeminiCLI)
	require.NoError(t, err)
	require.NotNil(t, change)

	select {
	case got := <-ch:
		assert.Equal(t, tools.GeminiCLI, got.Tool)
	default:
		t.Fatal("subscriber did not receive the change")
	}
}

func TestInitExpiresStalePending(t *testing.T) {
	dataDir := t.TempDir()
	registry := tools.AllIn(t.TempDir())

	eng := NewWithTools(dataDir, registry)
	require.NoError(t, eng.Init())
	require.NoError(t, eng.SaveProfile(tools.ClaudeCode, "work", toolcfg.Values{
		APIKey:  "sk-work-1234567890",
		BaseURL: "https://work.example.com",
	}))
	tool, _ := tools.ByIDIn(registry, tools.ClaudeCode)
	require.NoError(t, os.WriteFile(tool.FilePath("settings.json"),
		[]byte(`{"env":{"ANTHROPIC_AUTH_TOKEN":"sk-x","ANTHROPIC_BASE_URL":"https://work.example.com"}}`), 0600))
	change, err := eng.ScanOnce(tools.ClaudeCode)
	require.NoError(t, err)
	require.NotNil(t, change)

	// Simulate a restart over the same data dir.
	eng2 := NewWithTools(dataDir, registry)
	require.NoError(t, eng2.Init())

	records, _, err := eng2.GetChangeLogPage(1, 10)
	require.NoError(t, err)
	assert.Equal(t, changelog.ActionExpired, records[0].Action)
	assert.Nil(t, eng2.PendingChange(tools.ClaudeCode))
}

func TestWatchConfigRoundTrip(t *testing.T) {
	eng, _ := newTestEngine(t)

	cfg, err := eng.GetWatchConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)

	cfg.Enabled = false
	cfg.ScanIntervalSec = 5
	require.NoError(t, eng.UpdateWatchConfig(cfg))

	got, err := eng.GetWatchConfig()
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, 5, got.ScanIntervalSec)
}

func TestClearChangeLogs(t *testing.T) {
	eng, registry := newTestEngine(t)

	require.NoError(t, eng.SaveProfile(tools.ClaudeCode, "work", toolcfg.Values{
		APIKey:  "sk-work-1234567890",
		BaseURL: "https://work.example.com",
	}))
	editFile(t, registry, tools.ClaudeCode, "settings.json",
		`{"env":{"ANTHROPIC_AUTH_TOKEN":"sk-x","ANTHROPIC_BASE_URL":"https://work.example.com"}}`)
	_, err := eng.ScanOnce(tools.ClaudeCode)
	require.NoError(t, err)

	require.NoError(t, eng.ClearChangeLogs(tools.ClaudeCode))
	_, total, err := eng.GetChangeLogPage(1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestUnknownTool(t *testing.T) {
	eng, _ := newTestEngine(t)
	assert.Error(t, eng.SaveProfile("vscode", "work", toolcfg.Values{APIKey: "k", BaseURL: "u"}))
	_, err := eng.ListProfiles("vscode")
	assert.Error(t, err)
}
