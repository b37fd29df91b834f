package config

import (
	"os"
	"strings"
)

type providerEnvSpec struct {
	providerType string
	prefix       string
	displayName  string
}

var providerSpecs = []providerEnvSpec{
	{providerType: "local", prefix: "AUTH_LOCAL_", displayName: "Email"},
	{providerType: "oauth", prefix: "AUTH_OAUTH_", displayName: "OAuth"},
	{providerType: "google", prefix: "AUTH_GOOGLE_", displayName: "Google"},
	{providerType: "github", prefix: "AUTH_GITHUB_", displayName: "GitHub"},
}

// ParseAuthProvidersFromEnv reads AUTH_<PROVIDER>_* variables. Providers with no
// variables set are left out entirely.
func ParseAuthProvidersFromEnv() map[string]AuthProviderConfig {
	env := os.Environ()
	configs := make(map[string]AuthProviderConfig, len(providerSpecs))
	for _, spec := range providerSpecs {
		if !hasEnvPrefix(env, spec.prefix) {
			continue
		}
		cfg := parseProviderConfig(spec.providerType, spec.prefix, spec.displayName)
		configs[cfg.Type] = cfg
	}
	return configs
}

func parseProviderConfig(providerType string, prefix string, defaultName string) AuthProviderConfig {
	name := strings.TrimSpace(os.Getenv(prefix + "NAME"))
	if name == "" {
		name = defaultName
	}
	return applyDefaults(AuthProviderConfig{
		Name:         name,
		Type:         providerType,
		Enabled:      getenvBool(prefix+"ENABLED", false),
		ClientID:     strings.TrimSpace(os.Getenv(prefix + "CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv(prefix + "CLIENT_SECRET")),
		AuthURL:      strings.TrimSpace(os.Getenv(prefix + "AUTH_URL")),
		TokenURL:     strings.TrimSpace(os.Getenv(prefix + "TOKEN_URL")),
		APIURL:       strings.TrimSpace(os.Getenv(prefix + "API_URL")),
		Scopes:       parseScopes(os.Getenv(prefix + "SCOPES")),
		AllowSignUp:  getenvBoolFirst([]string{prefix + "ALLOW_SIGNUP", prefix + "ALLOW_SIGN_UP"}, true),
	})
}

func getenvBool(key string, def bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return parseBool(value, def)
}

func getenvBoolFirst(keys []string, def bool) bool {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			return parseBool(value, def)
		}
	}
	return def
}

func parseBool(value string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func parseScopes(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(parts) == 0 {
		return nil
	}
	return parts
}

func hasEnvPrefix(env []string, prefix string) bool {
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			return true
		}
	}
	return false
}
