package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
)

const (
	ServerShutdownTimeout = 10 * time.Second

	// DefaultConfigFile is read by the client when --cfg is not given, if it exists
	DefaultConfigFile = "eid-client.env"
)

// ClientEnvironment configures the eID client
type ClientEnvironment struct {
	Environment string `env:"ENVIRONMENT,default=dev"`
	LogLevel    string `env:"LOG_LEVEL,default=warn"`

	ServiceURL    string        `env:"CLAIM_SERVICE_URL,default=https://localhost/eid/avaldused/submit.php"`
	SubmitTimeout time.Duration `env:"SUBMIT_TIMEOUT,default=60s"`
	NoCrypt       bool          `env:"NO_CRYPT,default=false"`

	// pin the response signer to the service's published keys (disabled when empty)
	ServiceJWKSURL string `env:"SERVICE_JWKS_URL"`

	// card settings
	TokenIndex          int           `env:"TOKEN_INDEX,default=0"`
	CardTimeout         time.Duration `env:"CARD_TIMEOUT,default=10s"`
	CardEncoding        string        `env:"CARD_ENCODING,default=ISO-8859-1"`
	GetResponseChaining bool          `env:"GET_RESPONSE_CHAINING,default=false"`

	// claim container settings
	ClaimFormat         string `env:"CLAIM_FORMAT,default=ddoc"`
	BDOCVersion         string `env:"BDOC_VERSION,default=1.0"`
	SignerRole          string `env:"SIGNER_ROLE,default=role"`
	SignatureCity       string `env:"SIGNATURE_CITY,default=city"`
	SignatureState      string `env:"SIGNATURE_STATE,default=state"`
	SignatureCountry    string `env:"SIGNATURE_COUNTRY,default=country"`
	SignaturePostalCode string `env:"SIGNATURE_POSTAL_CODE,default=postal"`

	// OCSP settings. ISSUER_CERTS_PATH is a PEM bundle of the card issuer certificates,
	// the responder URL defaults to the one in the card certificate
	OCSPResponderURL string        `env:"OCSP_RESPONDER_URL"`
	OCSPTimeout      time.Duration `env:"OCSP_TIMEOUT,default=10s"`
	IssuerCertsPath  string        `env:"ISSUER_CERTS_PATH,required=true"`
}

// Format returns the parsed CLAIM_FORMAT.
func (c *ClientEnvironment) Format() container.Format {
	f, _ := container.ParseFormat(c.ClaimFormat)
	return f
}

// ProductionPlace returns the configured signature production place.
func (c *ClientEnvironment) ProductionPlace() container.ProductionPlace {
	return container.ProductionPlace{
		City:       c.SignatureCity,
		State:      c.SignatureState,
		Country:    c.SignatureCountry,
		PostalCode: c.SignaturePostalCode,
	}
}

// ServerEnvironment configures the claim service
type ServerEnvironment struct {

	// http server settings
	Environment    string        `env:"ENVIRONMENT,default=dev"`
	Host           string        `env:"HOST,default=0.0.0.0"`
	Port           int           `env:"PORT,default=8080"`
	LogLevel       string        `env:"LOG_LEVEL,default=debug"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	RateLimitRPS   int32         `env:"RATE_LIMIT_RPS,default=100"`
	RateLimitBurst int32         `env:"RATE_LIMIT_BURST,default=200"`
	MaxRequestSize int64         `env:"MAX_REQUEST_SIZE,default=10485760"`

	// response settings
	SignResponses bool   `env:"SIGN_RESPONSES,default=true"`
	ResponseText  string `env:"RESPONSE_TEXT,default=A response."`

	// claim checks. Claims are confirmed against the issuers in ISSUER_CERTS_PATH when it is set
	IssuerCertsPath     string `env:"ISSUER_CERTS_PATH"`
	RequireConfirmation bool   `env:"REQUIRE_CONFIRMATION,default=false"`

	// accepted claims' data files are saved here when set
	ClaimsDir string `env:"CLAIMS_DIR"`

	// Required service key configuration - must be set by environment variables
	SigningKeyPath  string `env:"SIGNING_KEY_PATH,required=true"`
	SigningCertPath string `env:"SIGNING_CERT_PATH,required=true"`
}

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"prod":    true,
	"staging": true,
}

// LoadDotEnv loads a dotenv file into the process environment. Variables already set are not overridden.
//
// When path is empty the DefaultConfigFile is loaded if it exists.
func LoadDotEnv(path string) error {
	if path == "" {
		if err := godotenv.Load(DefaultConfigFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", DefaultConfigFile, err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// NewClientConfig loads environment variables (after the optional dotenv file) and returns the client configuration
func NewClientConfig(cfgFile string) (*ClientEnvironment, error) {
	if err := LoadDotEnv(cfgFile); err != nil {
		return nil, err
	}

	var cfg ClientEnvironment
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateClientConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewServerConfig loads environment variables and returns a ServerEnvironment struct that contains the values
func NewServerConfig() (*ServerEnvironment, error) {
	var cfg ServerEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil

}

func validateClientConfig(cfg *ClientEnvironment) error {
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	if _, err := url.ParseRequestURI(cfg.ServiceURL); err != nil {
		return fmt.Errorf("invalid CLAIM_SERVICE_URL: %w", err)
	}
	if cfg.TokenIndex < 0 {
		return fmt.Errorf("TOKEN_INDEX must be 0 or greater")
	}
	if cfg.CardTimeout < 0 || cfg.OCSPTimeout < 0 || cfg.SubmitTimeout < 0 {
		return fmt.Errorf("CARD_TIMEOUT, OCSP_TIMEOUT and SUBMIT_TIMEOUT cannot be negative")
	}
	if _, err := container.ParseFormat(cfg.ClaimFormat); err != nil {
		return fmt.Errorf("invalid CLAIM_FORMAT: %w", err)
	}
	if cfg.BDOCVersion == "" {
		return fmt.Errorf("BDOC_VERSION cannot be empty")
	}
	if _, err := os.Stat(cfg.IssuerCertsPath); err != nil {
		return fmt.Errorf("ISSUER_CERTS_PATH: %w", err)
	}
	return nil
}

// validateConfig checks for required env variables
func validateConfig(cfg *ServerEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	if cfg.MaxRequestSize < 1 {
		return fmt.Errorf("MAX_REQUEST_SIZE must be at least 1")
	}
	if cfg.RequireConfirmation && cfg.IssuerCertsPath == "" {
		return fmt.Errorf("REQUIRE_CONFIRMATION needs ISSUER_CERTS_PATH")
	}

	return nil
}
