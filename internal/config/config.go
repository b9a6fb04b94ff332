package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration of the edgegate binaries. Operational
// parameters used per request (CDN domain, key pair id, ...) are not here:
// they live in the parameter store and are read through Params.
type Config struct {
	App struct {
		// dev | prod
		Env  string `yaml:"app_env"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		RemovePath         string   `yaml:"remove_path"`
	} `yaml:"server"`

	Store struct {
		Driver string `yaml:"driver"` // aws | redis | memory
		Region string `yaml:"region"`
		Redis  struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Parameters struct {
		// Prefix of every operational parameter name ({prefix}-cloudfront-domain, ...).
		Prefix string `yaml:"prefix"`
	} `yaml:"parameters"`

	Identity struct {
		JWKSStrictStatus bool   `yaml:"jwks_strict_status"`
		KeySelection     string `yaml:"key_selection"` // first | kid
		HTTPTimeout      string `yaml:"http_timeout"`
	} `yaml:"identity"`

	CDN struct {
		Driver string `yaml:"driver"` // aws | memory
	} `yaml:"cdn"`

	Rotation struct {
		Region             string `yaml:"region"`
		SecretID           string `yaml:"secret_id"`
		KeyGroupID         string `yaml:"key_group_id"`
		KeyPrefix          string `yaml:"key_prefix"`
		ActiveKeyParameter string `yaml:"active_key_parameter"`
		Schedule           string `yaml:"schedule"`
	} `yaml:"rotation"`
}

// Load reads path (if non-empty), applies defaults and env overrides, then
// validates.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "edgegate"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RemovePath == "" {
		c.Server.RemovePath = "/remove"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "aws"
	}
	// Lambda@Edge replicas read the parameter store in us-east-1.
	if c.Store.Region == "" {
		c.Store.Region = "us-east-1"
	}
	if c.Identity.KeySelection == "" {
		c.Identity.KeySelection = "first"
	}
	if c.Identity.HTTPTimeout == "" {
		c.Identity.HTTPTimeout = "5s"
	}
	if c.CDN.Driver == "" {
		c.CDN.Driver = "aws"
	}
	if c.Rotation.Region == "" {
		c.Rotation.Region = c.Store.Region
	}
	if c.Rotation.KeyPrefix == "" {
		c.Rotation.KeyPrefix = c.Parameters.Prefix
	}
	if c.Rotation.ActiveKeyParameter == "" && c.Parameters.Prefix != "" {
		c.Rotation.ActiveKeyParameter = Names(c.Parameters.Prefix).KeyPairID
	}
	if c.Rotation.Schedule == "" {
		c.Rotation.Schedule = "0 3 * * 1"
	}
}

// HTTPTimeout returns the parsed identity provider timeout.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Identity.HTTPTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// Validate checks values every binary depends on. Authorizer and rotator
// settings are checked by ValidateAuthorizer and ValidateRotation.
func (c *Config) Validate() error {
	switch c.Identity.KeySelection {
	case "first", "kid":
	default:
		return errors.New("config: identity.key_selection must be first or kid")
	}
	if _, err := time.ParseDuration(c.Identity.HTTPTimeout); err != nil {
		return errors.New("config: identity.http_timeout is not a duration")
	}
	return nil
}

// ValidateAuthorizer checks the settings the authorizer needs.
func (c *Config) ValidateAuthorizer() error {
	if strings.TrimSpace(c.Parameters.Prefix) == "" {
		return errors.New("config: parameters.prefix is required")
	}
	return nil
}

// ValidateRotation checks the settings the key rotator needs.
func (c *Config) ValidateRotation() error {
	switch {
	case c.Rotation.SecretID == "":
		return errors.New("config: rotation.secret_id is required")
	case c.Rotation.KeyGroupID == "":
		return errors.New("config: rotation.key_group_id is required")
	case c.Rotation.KeyPrefix == "":
		return errors.New("config: rotation.key_prefix is required")
	case c.Rotation.ActiveKeyParameter == "":
		return errors.New("config: rotation.active_key_parameter is required")
	}
	return nil
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides lets environment variables win over config.yaml.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvStr("SERVER_REMOVE_PATH"); ok {
		c.Server.RemovePath = v
	}

	// STORE
	if v, ok := getEnvStr("STORE_DRIVER"); ok {
		c.Store.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORE_REGION"); ok {
		c.Store.Region = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Store.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Store.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Store.Redis.Prefix = v
	}

	// PARAMETERS
	if v, ok := getEnvStr("SSM_PREFIX"); ok {
		c.Parameters.Prefix = v
	}

	// IDENTITY
	if v, ok := getEnvBool("JWKS_STRICT_STATUS"); ok {
		c.Identity.JWKSStrictStatus = v
	}
	if v, ok := getEnvStr("JWKS_KEY_SELECTION"); ok {
		c.Identity.KeySelection = strings.ToLower(v)
	}
	if v, ok := getEnvStr("IDENTITY_HTTP_TIMEOUT"); ok {
		c.Identity.HTTPTimeout = v
	}

	// CDN
	if v, ok := getEnvStr("CDN_DRIVER"); ok {
		c.CDN.Driver = strings.ToLower(v)
	}

	// ROTATION (Lambda environment names)
	if v, ok := getEnvStr("REGION"); ok {
		c.Rotation.Region = v
	}
	if v, ok := getEnvStr("SECRET_NAME"); ok {
		c.Rotation.SecretID = v
	}
	if v, ok := getEnvStr("KEY_GROUP_ID"); ok {
		c.Rotation.KeyGroupID = v
	}
	if v, ok := getEnvStr("PREFIX"); ok {
		c.Rotation.KeyPrefix = v
	}
	if v, ok := getEnvStr("SSM_PARAM"); ok {
		c.Rotation.ActiveKeyParameter = v
	}
	if v, ok := getEnvStr("ROTATION_SCHEDULE"); ok {
		c.Rotation.Schedule = v
	}
}
