package config

// AuthProviderConfig defines the raw configuration for an auth provider.
type AuthProviderConfig struct {
	Name         string
	Type         string
	Enabled      bool
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	APIURL       string
	Scopes       []string
	AllowSignUp  bool
}

// providerDefaults fills endpoints for well-known providers so only credentials need configuring.
var providerDefaults = map[string]AuthProviderConfig{
	"google": {
		AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
		APIURL:   "https://openidconnect.googleapis.com/v1/userinfo",
		Scopes:   []string{"openid", "email", "profile"},
	},
	"github": {
		AuthURL:  "https://github.com/login/oauth/authorize",
		TokenURL: "https://github.com/login/oauth/access_token",
		APIURL:   "https://api.github.com/user",
		Scopes:   []string{"read:user", "user:email"},
	},
}

func applyDefaults(cfg AuthProviderConfig) AuthProviderConfig {
	defaults, ok := providerDefaults[cfg.Type]
	if !ok {
		return cfg
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaults.APIURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	return cfg
}
