package toolcfg

import (
	"strings"

	"github.com/confdrift/confdrift/internal/cferrors"
)

// Codex splits its config across config.toml (provider wiring) and
// auth.json (the secret).
const (
	codexConfigFile = "config.toml"
	codexAuthFile   = "auth.json"
	codexSecretKey  = "OPENAI_API_KEY"

	// Base URLs pointing at the hosted provider get its fixed provider
	// key; everything else files under "custom".
	hostedProviderMarker = "duckcoding"
	hostedProviderKey    = "duckcoding"
	customProviderKey    = "custom"

	defaultCodexModel           = "gpt-5-codex"
	defaultCodexReasoningEffort = "high"
	defaultCodexWireAPI         = "responses"
)

type codexAdapter struct {
	fileset
}

func codexProviderKey(baseURL string) string {
	if strings.Contains(baseURL, hostedProviderMarker) {
		return hostedProviderKey
	}
	return customProviderKey
}

func (a *codexAdapter) StoreManagedFields(files Files, v Values) Files {
	out := a.cloneFiles(files)
	cfg := out[codexConfigFile]

	if v.Model != "" {
		cfg["model"] = v.Model
	} else if _, ok := cfg["model"]; !ok {
		cfg["model"] = defaultCodexModel
	}
	if _, ok := cfg["model_reasoning_effort"]; !ok {
		cfg["model_reasoning_effort"] = defaultCodexReasoningEffort
	}
	if _, ok := cfg["network_access"]; !ok {
		cfg["network_access"] = "enabled"
	}
	if _, ok := cfg["disable_response_storage"]; !ok {
		cfg["disable_response_storage"] = true
	}

	key := codexProviderKey(v.BaseURL)
	cfg["model_provider"] = key

	baseURL := v.BaseURL
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}

	providers := ensureMap(cfg, "model_providers")
	provider := ensureMap(providers, key)
	provider["name"] = key
	provider["base_url"] = baseURL
	provider["wire_api"] = defaultCodexWireAPI
	provider["requires_openai_auth"] = true

	auth := out[codexAuthFile]
	auth[codexSecretKey] = v.APIKey
	return out
}

// codexManagedKeys are the config.toml paths StoreManagedFields may write.
var codexManagedKeys = []string{
	"model",
	"model_reasoning_effort",
	"network_access",
	"disable_response_storage",
	"model_provider",
	"model_providers",
}

func (a *codexAdapter) RestoreManagedFields(current, baseline Files) Files {
	out := a.cloneFiles(current)
	cfg := out[codexConfigFile]
	src := baseline[codexConfigFile]
	for _, key := range codexManagedKeys {
		restoreNested(cfg, src, key)
	}
	restoreNested(out[codexAuthFile], baseline[codexAuthFile], codexSecretKey)
	return out
}

func (a *codexAdapter) ExtractValues(files Files) (Values, error) {
	auth := files[codexAuthFile]
	apiKey := stringField(auth, codexSecretKey)
	if apiKey == "" {
		return Values{}, cferrors.InvalidFormatf("codex auth.json missing %s", codexSecretKey)
	}

	cfg := files[codexConfigFile]
	providerName := stringField(cfg, "model_provider")
	if providerName == "" {
		return Values{}, cferrors.InvalidFormatf("codex config.toml missing model_provider")
	}
	providers, _ := cfg["model_providers"].(map[string]any)
	provider, _ := providers[providerName].(map[string]any)
	baseURL := stringField(provider, "base_url")
	if baseURL == "" {
		return Values{}, cferrors.InvalidFormatf("codex config.toml missing model_providers.%s.base_url", providerName)
	}

	return Values{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   stringField(cfg, "model"),
	}, nil
}
