package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RegistrationPolicy holds the tunables of the registration flow that
// operators change without a redeploy.
type RegistrationPolicy struct {
	Routes          RoutePaths    `mapstructure:"routes"`
	Providers       []string      `mapstructure:"providers"`
	ConfirmationTTL time.Duration `mapstructure:"confirmationTTL"`
	VisitIdleTTL    time.Duration `mapstructure:"visitIdleTTL"`
	// ConsentTTL bounds how long a provider sign-in waits for the callback.
	ConsentTTL time.Duration `mapstructure:"consentTTL"`
}

// RoutePaths maps navigation route ids to browser paths.
type RoutePaths struct {
	Register          string `mapstructure:"register"`
	SignIn            string `mapstructure:"signIn"`
	AuthenticatedHome string `mapstructure:"authenticatedHome"`
}

func DefaultRegistrationPolicy() RegistrationPolicy {
	return RegistrationPolicy{
		Routes: RoutePaths{
			Register:          "/auth/register",
			SignIn:            "/auth/login",
			AuthenticatedHome: "/dashboard",
		},
		Providers:       []string{"google"},
		ConfirmationTTL: 24 * time.Hour,
		VisitIdleTTL:    30 * time.Minute,
		ConsentTTL:      10 * time.Minute,
	}
}

// ProviderAllowed reports whether providerID is on the allow-list.
func (p RegistrationPolicy) ProviderAllowed(providerID string) bool {
	providerID = strings.ToLower(strings.TrimSpace(providerID))
	for _, allowed := range p.Providers {
		if strings.ToLower(strings.TrimSpace(allowed)) == providerID {
			return true
		}
	}
	return false
}

type PolicyHolder struct {
	current atomic.Value // holds RegistrationPolicy
}

// NewPolicyHolder loads registration.yml from the usual config locations and
// watches it for changes. Missing files fall back to the defaults.
func NewPolicyHolder() (*PolicyHolder, error) {
	return newPolicyHolder("/etc/flowmarket", ".")
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy RegistrationPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(withDefaultTimeouts(policy))
	return holder
}

func newPolicyHolder(paths ...string) (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("registration")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("FLOWMARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRegistrationPolicy()
	v.SetDefault("registration.routes.register", defaults.Routes.Register)
	v.SetDefault("registration.routes.signIn", defaults.Routes.SignIn)
	v.SetDefault("registration.routes.authenticatedHome", defaults.Routes.AuthenticatedHome)
	v.SetDefault("registration.providers", defaults.Providers)
	v.SetDefault("registration.confirmationTTL", defaults.ConfirmationTTL)
	v.SetDefault("registration.visitIdleTTL", defaults.VisitIdleTTL)
	v.SetDefault("registration.consentTTL", defaults.ConsentTTL)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var policy RegistrationPolicy
	if err := v.UnmarshalKey("registration", &policy); err != nil {
		return nil, err
	}
	policy = withDefaultTimeouts(policy)
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RegistrationPolicy
		if err := v.UnmarshalKey("registration", &updated); err != nil {
			log.Printf("[registration-policy] reload failed: %v", err)
			return
		}
		updated = withDefaultTimeouts(updated)
		if err := validatePolicy(updated); err != nil {
			log.Printf("[registration-policy] invalid policy ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[registration-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PolicyHolder) Get() RegistrationPolicy {
	return h.current.Load().(RegistrationPolicy)
}

// withDefaultTimeouts fills timeouts a registration.yml left out. Negative
// values are kept so validation rejects them.
func withDefaultTimeouts(p RegistrationPolicy) RegistrationPolicy {
	defaults := DefaultRegistrationPolicy()
	if p.ConfirmationTTL == 0 {
		p.ConfirmationTTL = defaults.ConfirmationTTL
	}
	if p.VisitIdleTTL == 0 {
		p.VisitIdleTTL = defaults.VisitIdleTTL
	}
	if p.ConsentTTL == 0 {
		p.ConsentTTL = defaults.ConsentTTL
	}
	return p
}

func validatePolicy(p RegistrationPolicy) error {
	if strings.TrimSpace(p.Routes.SignIn) == "" || strings.TrimSpace(p.Routes.AuthenticatedHome) == "" {
		return errors.New("registration.routes.signIn and registration.routes.authenticatedHome are required")
	}
	if strings.TrimSpace(p.Routes.Register) == "" {
		return errors.New("registration.routes.register is required")
	}
	if p.ConfirmationTTL <= 0 {
		return errors.New("registration.confirmationTTL must be positive")
	}
	if p.VisitIdleTTL <= 0 {
		return errors.New("registration.visitIdleTTL must be positive")
	}
	if p.ConsentTTL <= 0 {
		return errors.New("registration.consentTTL must be positive")
	}
	return nil
}
