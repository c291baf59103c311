package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	strs "merchant/pkg/platform/strings"
)

// Server captures merchant HTTP server configuration.
type Server struct {
	Addr           string        `env:"MERCHANT_ADDR"  envDefault:":3000"`
	Environment    string        `env:"MERCHANT_ENV"   envDefault:"dev"`
	LogLevel       string        `env:"LOG_LEVEL"      envDefault:"info"`
	MetricsEnabled bool          `env:"METRICS_ENABLED" envDefault:"true"`
	RequestTimeout time.Duration `env:"MERCHANT_REQUEST_TIMEOUT" envDefault:"30s"`

	PayAuth PayAuth
	Widget  Widget
}

// PayAuth holds the remote authentication service settings. APISecret is
// server-held and must never be rendered to the browser.
type PayAuth struct {
	MerchantID     string        `env:"PAYAUTH_MERCHANT_ID,required,notEmpty"`
	APISecret      string        `env:"PAYAUTH_API_SECRET,required,notEmpty"`
	ServiceURL     string        `env:"PAYAUTH_SERVICE_URL,required,notEmpty"`
	ScriptPath     string        `env:"PAYAUTH_SCRIPT_PATH"     envDefault:"/sdk/payauth.min.js"`
	AllowedOrigins []string      `env:"PAYAUTH_ALLOWED_ORIGINS" envSeparator:","`
	VerifyTimeout  time.Duration `env:"PAYAUTH_VERIFY_TIMEOUT"  envDefault:"10s"`
}

// Widget holds presentation defaults handed to the browser widget.
type Widget struct {
	Theme          string        `env:"WIDGET_THEME"           envDefault:"light"`
	ButtonText     string        `env:"WIDGET_BUTTON_TEXT"     envDefault:"Pay with Passkey"`
	AttemptTimeout time.Duration `env:"WIDGET_ATTEMPT_TIMEOUT" envDefault:"2m"`
}

// Stub configures the local stand-in for the remote authentication service.
type Stub struct {
	Addr       string        `env:"PAYAUTH_STUB_ADDR"        envDefault:":4000"`
	LogLevel   string        `env:"LOG_LEVEL"                envDefault:"info"`
	SigningKey string        `env:"PAYAUTH_STUB_SIGNING_KEY" envDefault:"dev-signing-key-change-me"`
	APISecret  string        `env:"PAYAUTH_API_SECRET,required,notEmpty"`
	TokenTTL   time.Duration `env:"PAYAUTH_STUB_TOKEN_TTL"   envDefault:"5m"`
}

// IsDev reports whether the server runs in development mode.
func (s Server) IsDev() bool {
	return s.Environment == "dev"
}

// ScriptURL is the absolute URL of the widget script resource.
func (p PayAuth) ScriptURL() string {
	return strings.TrimRight(p.ServiceURL, "/") + "/" + strings.TrimLeft(p.ScriptPath, "/")
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() (Server, error) {
	loadDotEnv()

	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.PayAuth.AllowedOrigins = strs.DedupeFunc(cfg.PayAuth.AllowedOrigins, strs.CanonicalOrigin)
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// StubFromEnv builds the stub service config from environment variables.
func StubFromEnv() (Stub, error) {
	loadDotEnv()

	var cfg Stub
	if err := env.Parse(&cfg); err != nil {
		return Stub{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		return Stub{}, errors.New("PAYAUTH_STUB_TOKEN_TTL must be positive")
	}
	return cfg, nil
}

// Validate checks invariants env tags cannot express.
func (s Server) Validate() error {
	u, err := url.Parse(s.PayAuth.ServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PAYAUTH_SERVICE_URL must be an absolute URL, got %q", s.PayAuth.ServiceURL)
	}
	if u.Scheme != "https" && !s.IsDev() {
		return errors.New("PAYAUTH_SERVICE_URL must use https outside dev")
	}
	if s.PayAuth.VerifyTimeout <= 0 {
		return errors.New("PAYAUTH_VERIFY_TIMEOUT must be positive")
	}
	if s.Widget.AttemptTimeout <= 0 {
		return errors.New("WIDGET_ATTEMPT_TIMEOUT must be positive")
	}
	for _, origin := range s.PayAuth.AllowedOrigins {
		o, err := url.Parse(strings.TrimSpace(origin))
		if err != nil || o.Scheme == "" || o.Host == "" {
			return fmt.Errorf("PAYAUTH_ALLOWED_ORIGINS contains invalid origin %q", origin)
		}
	}
	return nil
}

func loadDotEnv() {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()
}
