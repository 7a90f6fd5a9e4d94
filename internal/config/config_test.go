package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
)

func writeIssuers(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "issuers.pem")
	if err := os.WriteFile(path, []byte("placeholder"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewClientConfigDefaults(t *testing.T) {
	t.Setenv("ISSUER_CERTS_PATH", writeIssuers(t))

	cfg, err := NewClientConfig("")
	if err != nil {
		t.Fatalf("NewClientConfig() error = %v", err)
	}

	if cfg.ServiceURL != "https://localhost/eid/avaldused/submit.php" {
		t.Errorf("ServiceURL = %q", cfg.ServiceURL)
	}
	if cfg.CardTimeout != 10*time.Second || cfg.CardEncoding != "ISO-8859-1" {
		t.Errorf("card settings = %v %q", cfg.CardTimeout, cfg.CardEncoding)
	}
	if cfg.Format() != container.FormatDigiDocXML {
		t.Errorf("Format() = %v", cfg.Format())
	}
	want := container.ProductionPlace{City: "city", State: "state", Country: "country", PostalCode: "postal"}
	if cfg.ProductionPlace() != want {
		t.Errorf("ProductionPlace() = %+v", cfg.ProductionPlace())
	}
	if cfg.NoCrypt || cfg.GetResponseChaining {
		t.Error("optional behaviours should default to off")
	}
}

func TestNewClientConfigFromDotEnv(t *testing.T) {
	issuers := writeIssuers(t)
	path := filepath.Join(t.TempDir(), "client.env")
	content := "CLAIM_FORMAT=bdoc\nTOKEN_INDEX=2\nNO_CRYPT=true\nISSUER_CERTS_PATH=" + issuers + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	// godotenv sets process variables, register them so the test restores them
	for _, k := range []string{"CLAIM_FORMAT", "TOKEN_INDEX", "NO_CRYPT", "ISSUER_CERTS_PATH"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := NewClientConfig(path)
	if err != nil {
		t.Fatalf("NewClientConfig() error = %v", err)
	}
	if cfg.Format() != container.FormatBDOC || cfg.TokenIndex != 2 || !cfg.NoCrypt {
		t.Errorf("dotenv values not applied: %+v", cfg)
	}
}

func TestNewClientConfigErrors(t *testing.T) {
	issuers := writeIssuers(t)

	tests := []struct {
		name    string
		cfgFile string
		env     map[string]string
	}{
		{"missing explicit cfg file", filepath.Join(t.TempDir(), "missing.env"), map[string]string{"ISSUER_CERTS_PATH": issuers}},
		{"unknown format", "", map[string]string{"ISSUER_CERTS_PATH": issuers, "CLAIM_FORMAT": "pdf"}},
		{"negative token index", "", map[string]string{"ISSUER_CERTS_PATH": issuers, "TOKEN_INDEX": "-1"}},
		{"bad service url", "", map[string]string{"ISSUER_CERTS_PATH": issuers, "CLAIM_SERVICE_URL": "not a url"}},
		{"missing issuer bundle", "", map[string]string{"ISSUER_CERTS_PATH": filepath.Join(t.TempDir(), "none.pem")}},
		{"invalid environment", "", map[string]string{"ISSUER_CERTS_PATH": issuers, "ENVIRONMENT": "qa"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := NewClientConfig(tt.cfgFile); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	valid := ServerEnvironment{Environment: "dev", Port: 8080, MaxRequestSize: 1024}

	tests := []struct {
		name    string
		mutate  func(*ServerEnvironment)
		wantErr bool
	}{
		{"valid", func(*ServerEnvironment) {}, false},
		{"port zero", func(c *ServerEnvironment) { c.Port = 0 }, true},
		{"port too large", func(c *ServerEnvironment) { c.Port = 70000 }, true},
		{"unknown environment", func(c *ServerEnvironment) { c.Environment = "qa" }, true},
		{"no request size", func(c *ServerEnvironment) { c.MaxRequestSize = 0 }, true},
		{"confirmation without issuers", func(c *ServerEnvironment) { c.RequireConfirmation = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := validateConfig(&cfg); (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
