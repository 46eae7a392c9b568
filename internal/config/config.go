package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the hooks engine configuration
type Config struct {
	Environment Environment    `yaml:"environment"`
	Auth        AuthConfig     `yaml:"auth"`
	Status      StatusConfig   `yaml:"status"`
	Fields      FieldConfig    `yaml:"fields"`
	Features    FeatureConfig  `yaml:"features"`
	Simulation  SimulateConfig `yaml:"simulation"`
	Worker      WorkerConfig   `yaml:"worker"`
	Logging     LoggingConfig  `yaml:"logging"`
}

// Environment holds the location of the system under test and its contract
type Environment struct {
	BaseURL    string `yaml:"base_url"`
	SchemaPath string `yaml:"schema_path"`
}

// AuthConfig describes how credentials are sent and where they come from
type AuthConfig struct {
	HeaderName string `yaml:"header_name"`
	// TokenPrefix may be set to "" for schemes that send the bare token.
	TokenPrefix      *string `yaml:"token_prefix"`
	LoginEndpoint    string  `yaml:"login_endpoint"`
	RegisterEndpoint string  `yaml:"register_endpoint"`
	TokenField       string  `yaml:"token_field"`
}

// StatusConfig lists the status codes the runner may expect
type StatusConfig struct {
	Success []int `yaml:"success"`
	Error   []int `yaml:"error"`
}

// FieldConfig holds the field name patterns used for role detection
type FieldConfig struct {
	Email       []string     `yaml:"email"`
	Password    []string     `yaml:"password"`
	Identifier  []string     `yaml:"identifier"`
	Token       []string     `yaml:"token"`
	EmailSuffix string       `yaml:"email_suffix"`
	Money       []MoneyRange `yaml:"money"`
}

// MoneyRange bounds generated values for numeric fields whose name contains Pattern
type MoneyRange struct {
	Pattern string  `yaml:"pattern"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
}

// FeatureConfig holds the behavior toggles
type FeatureConfig struct {
	AutoDiscovery         bool     `yaml:"auto_discovery"`
	AutoDetectTokenFields *bool    `yaml:"auto_detect_token_fields"`
	AutoDetectIDFields    *bool    `yaml:"auto_detect_id_fields"`
	DynamicData           *bool    `yaml:"dynamic_data"`
	ErrorSimulation       *bool    `yaml:"error_simulation"`
	SkipAll               bool     `yaml:"skip_all"`
	SkipPatterns          []string `yaml:"skip_patterns"`
}

// SimulateConfig holds the conventions used to provoke error responses
type SimulateConfig struct {
	Param      string `yaml:"param"`
	NotFoundID string `yaml:"not_found_id"`
	FallbackID string `yaml:"fallback_id"`
}

// WorkerConfig holds the hooks worker listen address
type WorkerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig holds logging options
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Dir   string `yaml:"dir"`
}

// Default values
const (
	DefaultBaseURL          = "http://localhost:3000"
	DefaultSchemaPath       = "schemas/api-schema.yaml"
	DefaultLoginEndpoint    = "/auth/login"
	DefaultRegisterEndpoint = "/auth/register"
)

// Default returns a configuration with every default filled in
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML config file at path (optional), the env file (optional) and
// environment overrides, in that order.
func Load(path, envFile string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Environment.BaseURL, "API_BASE_URL")
	setString(&c.Environment.SchemaPath, "OPENAPI_SCHEMA_PATH")
	setString(&c.Auth.HeaderName, "AUTH_HEADER_NAME")
	if v, ok := os.LookupEnv("AUTH_TOKEN_PREFIX"); ok {
		c.Auth.TokenPrefix = &v
	}
	setString(&c.Auth.LoginEndpoint, "AUTH_LOGIN_ENDPOINT")
	setString(&c.Auth.RegisterEndpoint, "AUTH_REGISTER_ENDPOINT")
	setString(&c.Auth.TokenField, "AUTH_TOKEN_FIELD")
	setString(&c.Fields.EmailSuffix, "UNIQUE_EMAIL_SUFFIX")
	setString(&c.Simulation.Param, "SIMULATE_PARAM")
	setString(&c.Simulation.NotFoundID, "NOT_FOUND_ID")
	setString(&c.Simulation.FallbackID, "FALLBACK_RESOURCE_ID")
	setString(&c.Worker.Host, "HOOKS_WORKER_HOST")
	setString(&c.Logging.Dir, "LOG_DIR")

	setList(&c.Fields.Token, "TOKEN_FIELD_PATTERNS")
	setList(&c.Fields.Identifier, "ID_FIELD_PATTERNS")
	setList(&c.Fields.Email, "EMAIL_FIELD_PATTERNS")
	setList(&c.Fields.Password, "PASSWORD_FIELD_PATTERNS")
	setList(&c.Features.SkipPatterns, "SKIP_PATTERNS")

	if err := setCodes(&c.Status.Success, "SUCCESS_STATUS_CODES"); err != nil {
		return err
	}
	if err := setCodes(&c.Status.Error, "ERROR_STATUS_CODES"); err != nil {
		return err
	}

	if raw := strings.TrimSpace(os.Getenv("HOOKS_WORKER_PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid HOOKS_WORKER_PORT %q: %w", raw, err)
		}
		c.Worker.Port = port
	}

	// Opt-in toggles are only on when set to "true".
	if v, ok := lookupBool("ENABLE_AUTO_DISCOVERY"); ok {
		c.Features.AutoDiscovery = v
	}
	if v, ok := lookupBool("AUTO_SKIP_TESTS"); ok {
		c.Features.SkipAll = v
	}
	if v, ok := lookupBool("ENABLE_DEBUG_LOGGING"); ok {
		c.Logging.Debug = v
	}

	// Opt-out toggles stay on unless set to "false".
	setOptOut(&c.Features.AutoDetectTokenFields, "AUTO_DETECT_TOKEN_FIELDS")
	setOptOut(&c.Features.AutoDetectIDFields, "AUTO_DETECT_ID_FIELDS")
	setOptOut(&c.Features.DynamicData, "ENABLE_DYNAMIC_DATA_GENERATION")
	setOptOut(&c.Features.ErrorSimulation, "ENABLE_ERROR_SIMULATION")
	return nil
}

func (c *Config) applyDefaults() {
	if c.Environment.BaseURL == "" {
		c.Environment.BaseURL = DefaultBaseURL
	}
	if c.Environment.SchemaPath == "" {
		c.Environment.SchemaPath = DefaultSchemaPath
	}
	if c.Auth.HeaderName == "" {
		c.Auth.HeaderName = "Authorization"
	}
	if c.Auth.TokenPrefix == nil {
		prefix := "Bearer "
		c.Auth.TokenPrefix = &prefix
	}
	if c.Auth.LoginEndpoint == "" {
		c.Auth.LoginEndpoint = DefaultLoginEndpoint
	}
	if c.Auth.RegisterEndpoint == "" {
		c.Auth.RegisterEndpoint = DefaultRegisterEndpoint
	}
	if c.Auth.TokenField == "" {
		c.Auth.TokenField = "token"
	}
	if len(c.Status.Success) == 0 {
		c.Status.Success = []int{200, 201, 202, 204}
	}
	if len(c.Status.Error) == 0 {
		c.Status.Error = []int{400, 401, 403, 404, 409, 422, 500}
	}
	if len(c.Fields.Token) == 0 {
		c.Fields.Token = []string{"token", "access_token", "accessToken", "authToken", "jwt", "auth.token", "data.token", "result.token"}
	}
	if len(c.Fields.Identifier) == 0 {
		c.Fields.Identifier = []string{"id", "_id", "uuid", "identifier", "pk", "objectId"}
	}
	if len(c.Fields.Email) == 0 {
		c.Fields.Email = []string{"email", "emailAddress", "userEmail", "mail"}
	}
	if len(c.Fields.Password) == 0 {
		c.Fields.Password = []string{"password", "passwd", "pwd", "pass"}
	}
	if c.Fields.EmailSuffix == "" {
		c.Fields.EmailSuffix = "@example.com"
	}
	if len(c.Fields.Money) == 0 {
		c.Fields.Money = []MoneyRange{
			{Pattern: "total", Min: 50, Max: 500},
			{Pattern: "price", Min: 10, Max: 200},
			{Pattern: "amount", Min: 10, Max: 500},
		}
	}
	if c.Features.AutoDetectTokenFields == nil {
		c.Features.AutoDetectTokenFields = boolPtr(true)
	}
	if c.Features.AutoDetectIDFields == nil {
		c.Features.AutoDetectIDFields = boolPtr(true)
	}
	if c.Features.DynamicData == nil {
		c.Features.DynamicData = boolPtr(true)
	}
	if c.Features.ErrorSimulation == nil {
		c.Features.ErrorSimulation = boolPtr(true)
	}
	if c.Simulation.Param == "" {
		c.Simulation.Param = "simulate"
	}
	if c.Simulation.NotFoundID == "" {
		c.Simulation.NotFoundID = "999999"
	}
	if c.Simulation.FallbackID == "" {
		c.Simulation.FallbackID = "1"
	}
	if c.Worker.Host == "" {
		c.Worker.Host = "127.0.0.1"
	}
	if c.Worker.Port == 0 {
		c.Worker.Port = 61321
	}
}

// WorkerAddr returns the hooks worker listen address
func (c *Config) WorkerAddr() string {
	return fmt.Sprintf("%s:%d", c.Worker.Host, c.Worker.Port)
}

// TokenPrefix returns the scheme prefix written before the token, possibly empty
func (c *Config) TokenPrefix() string {
	if c.Auth.TokenPrefix == nil {
		return ""
	}
	return *c.Auth.TokenPrefix
}

// AutoDetectTokenFields reports whether all token patterns are tried on capture
func (c *Config) AutoDetectTokenFields() bool { return isOn(c.Features.AutoDetectTokenFields) }

// AutoDetectIDFields reports whether identifier field detection is enabled
func (c *Config) AutoDetectIDFields() bool { return isOn(c.Features.AutoDetectIDFields) }

// DynamicData reports whether request bodies are synthesized
func (c *Config) DynamicData() bool { return isOn(c.Features.DynamicData) }

// ErrorSimulation reports whether request targets are rewritten for negative outcomes
func (c *Config) ErrorSimulation() bool { return isOn(c.Features.ErrorSimulation) }

func isOn(v *bool) bool {
	return v == nil || *v
}

func boolPtr(v bool) *bool {
	return &v
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	*dst = splitList(raw)
}

func setCodes(dst *[]int, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	codes := make([]int, 0)
	for _, part := range splitList(raw) {
		code, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid status code %q in %s: %w", part, key, err)
		}
		codes = append(codes, code)
	}
	*dst = codes
	return nil
}

func setOptOut(dst **bool, key string) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	*dst = boolPtr(strings.TrimSpace(strings.ToLower(raw)) != "false")
}

func lookupBool(key string) (bool, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	return strings.TrimSpace(strings.ToLower(raw)) == "true", true
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
