package toolcfg

import (
	"github.com/confdrift/confdrift/internal/cferrors"
)

// Claude Code keeps its managed fields in the env map of settings.json.
const (
	claudeSettingsFile = "settings.json"
	claudeAuthTokenKey = "ANTHROPIC_AUTH_TOKEN"
	claudeBaseURLKey   = "ANTHROPIC_BASE_URL"
)

type claudeAdapter struct {
	fileset
}

func (a *claudeAdapter) StoreManagedFields(files Files, v Values) Files {
	out := a.cloneFiles(files)
	env := ensureMap(out[claudeSettingsFile], "env")
	env[claudeAuthTokenKey] = v.APIKey
	env[claudeBaseURLKey] = v.BaseURL
	return out
}

func (a *claudeAdapter) RestoreManagedFields(current, baseline Files) Files {
	out := a.cloneFiles(current)
	settings := out[claudeSettingsFile]
	src := baseline[claudeSettingsFile]
	restoreNested(settings, src, "env", claudeAuthTokenKey)
	restoreNested(settings, src, "env", claudeBaseURLKey)
	return out
}

func (a *claudeAdapter) ExtractValues(files Files) (Values, error) {
	settings := files[claudeSettingsFile]
	env, ok := settings["env"].(map[string]any)
	if !ok {
		return Values{}, cferrors.InvalidFormatf("claude-code settings missing env map")
	}
	v := Values{
		APIKey:  stringField(env, claudeAuthTokenKey),
		BaseURL: stringField(env, claudeBaseURLKey),
	}
	if v.APIKey == "" || v.BaseURL == "" {
		return Values{}, cferrors.InvalidFormatf("claude-code settings missing %s or %s",
			claudeAuthTokenKey, claudeBaseURLKey)
	}
	return v, nil
}
