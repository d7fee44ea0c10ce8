package toolcfg

import (
	"github.com/confdrift/confdrift/internal/cferrors"
	"github.com/confdrift/confdrift/internal/configtree"
)

// Gemini CLI splits its config across a .env file (credentials, model)
// and settings.json (two nested flags).
const (
	geminiEnvFile      = ".env"
	geminiSettingsFile = "settings.json"
	geminiBaseURLVar   = "GOOGLE_GEMINI_BASE_URL"
	geminiAPIKeyVar    = "GEMINI_API_KEY"
	geminiModelVar     = "GEMINI_MODEL"

	defaultGeminiModel = "gemini-2.5-pro"
	geminiAuthType     = "gemini-api-key"
)

type geminiAdapter struct {
	fileset
}

func (a *geminiAdapter) StoreManagedFields(files Files, v Values) Files {
	out := a.cloneFiles(files)

	env := out[geminiEnvFile]
	env[geminiBaseURLVar] = v.BaseURL
	env[geminiAPIKeyVar] = v.APIKey
	if v.Model != "" {
		env[geminiModelVar] = v.Model
	} else if _, ok := env[geminiModelVar]; !ok {
		env[geminiModelVar] = defaultGeminiModel
	}

	settings := out[geminiSettingsFile]
	if _, ok := settings["ide"]; !ok {
		settings["ide"] = configtree.Tree{"enabled": true}
	}
	if _, ok := settings["security"]; !ok {
		settings["security"] = configtree.Tree{
			"auth": configtree.Tree{"selectedType": geminiAuthType},
		}
	}
	return out
}

func (a *geminiAdapter) RestoreManagedFields(current, baseline Files) Files {
	out := a.cloneFiles(current)

	env := out[geminiEnvFile]
	srcEnv := baseline[geminiEnvFile]
	restoreNested(env, srcEnv, geminiBaseURLVar)
	restoreNested(env, srcEnv, geminiAPIKeyVar)
	restoreNested(env, srcEnv, geminiModelVar)

	settings := out[geminiSettingsFile]
	srcSettings := baseline[geminiSettingsFile]
	restoreNested(settings, srcSettings, "ide", "enabled")
	restoreNested(settings, srcSettings, "security", "auth", "selectedType")
	return out
}

func (a *geminiAdapter) ExtractValues(files Files) (Values, error) {
	env := files[geminiEnvFile]
	v := Values{
		APIKey:  stringField(env, geminiAPIKeyVar),
		BaseURL: stringField(env, geminiBaseURLVar),
		Model:   stringField(env, geminiModelVar),
	}
	if v.APIKey == "" || v.BaseURL == "" {
		return Values{}, cferrors.InvalidFormatf("gemini-cli .env missing %s or %s",
			geminiAPIKeyVar, geminiBaseURLVar)
	}
	return v, nil
}
