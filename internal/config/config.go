package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/sketch-match/internal/constants"
)

// Backend names accepted in Config.Backend.
const (
	BackendDirect = "direct"
	BackendProxy  = "proxy"
)

type Config struct {
	Backend     string            `yaml:"backend"` // direct or proxy
	AWS         AWSConfig         `yaml:"aws"`
	Storage     StorageConfig     `yaml:"storage"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Proxy       ProxyConfig       `yaml:"proxy"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	Web         WebConfig         `yaml:"web"`
}

type AWSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`     // optional, default credential chain otherwise
	SecretAccessKey string `yaml:"secret_access_key"` // optional
	Endpoint        string `yaml:"endpoint"`          // optional, e.g. a LocalStack or MinIO URL
}

type StorageConfig struct {
	Bucket        string `yaml:"bucket"`
	GalleryPrefix string `yaml:"gallery_prefix"`  // folder holding reference photos, defaults to Photos/
	ProbePrefix   string `yaml:"probe_prefix"`    // folder for uploaded sketches, empty = bucket root
	PublicBaseURL string `yaml:"public_base_url"` // defaults to https://<bucket>.s3.<region>.amazonaws.com/
}

type RecognitionConfig struct {
	CollectionID  string  `yaml:"collection_id"`
	MinSimilarity float64 `yaml:"min_similarity"`
	MaxResults    int     `yaml:"max_results"`
	PrefixToken   string  `yaml:"prefix_token"` // stripped from external ids when building display URLs
}

type ProxyConfig struct {
	URL         string `yaml:"url"`
	PrefixToken string `yaml:"prefix_token"`
	TimeoutSec  int    `yaml:"timeout_sec"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`            // PostgreSQL connection URL, empty disables the face registry
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 10)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 2)
}

type LoggingConfig struct {
	Env   string `yaml:"env"`   // local or prod
	Level string `yaml:"level"` // debug, info, warn, error
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS origins besides localhost
}

// ObjectURL returns the public URL of an object in the configured bucket.
func (c *Config) ObjectURL(key string) string {
	base := c.Storage.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", c.Storage.Bucket, c.AWS.Region)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + (&url.URL{Path: key}).EscapedPath()
}

// Hyperlink returns an OSC 8 hyperlink for terminal emulators (iTerm2, etc.)
// Displays text but makes it clickable to open link.
// Returns text unchanged if link is empty.
func Hyperlink(link, text string) string {
	if link == "" {
		return text
	}
	// OSC 8 hyperlink format: \e]8;;URL\e\\TEXT\e]8;;\e\\
	return "\x1b]8;;" + link + "\x1b\\" + text + "\x1b]8;;\x1b\\"
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envString returns the environment variable or the default value if unset.
func envString(key, defaultVal string) string {
	if s, ok := os.LookupEnv(key); ok && s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load builds the configuration from environment variables.
func Load() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file, then lets environment variables override it.
// ${VAR} and ${VAR:-default} references in the file are expanded first.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	return cfg, nil
}

// applyEnv overrides fields with the matching environment variables that are set.
func (c *Config) applyEnv() {
	c.Backend = envString("BACKEND", c.Backend)

	c.AWS.Region = envString("AWS_REGION", c.AWS.Region)
	c.AWS.AccessKeyID = envString("AWS_ACCESS_KEY_ID", c.AWS.AccessKeyID)
	c.AWS.SecretAccessKey = envString("AWS_SECRET_ACCESS_KEY", c.AWS.SecretAccessKey)
	c.AWS.Endpoint = envString("AWS_ENDPOINT_URL", c.AWS.Endpoint)

	c.Storage.Bucket = envString("S3_BUCKET", c.Storage.Bucket)
	c.Storage.GalleryPrefix = envString("GALLERY_PREFIX", c.Storage.GalleryPrefix)
	c.Storage.ProbePrefix = envString("PROBE_PREFIX", c.Storage.ProbePrefix)
	c.Storage.PublicBaseURL = envString("PUBLIC_BASE_URL", c.Storage.PublicBaseURL)

	c.Recognition.CollectionID = envString("REKOGNITION_COLLECTION", c.Recognition.CollectionID)
	c.Recognition.MinSimilarity = envFloat("MIN_SIMILARITY", c.Recognition.MinSimilarity)
	c.Recognition.MaxResults = envInt("MAX_RESULTS", c.Recognition.MaxResults)
	c.Recognition.PrefixToken = envString("EXTERNAL_ID_PREFIX_TOKEN", c.Recognition.PrefixToken)

	c.Proxy.URL = envString("PROXY_URL", c.Proxy.URL)
	c.Proxy.PrefixToken = envString("PROXY_PREFIX_TOKEN", c.Proxy.PrefixToken)
	c.Proxy.TimeoutSec = envInt("PROXY_TIMEOUT_SEC", c.Proxy.TimeoutSec)

	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)

	c.Logging.Env = envString("LOG_ENV", c.Logging.Env)
	c.Logging.Level = envString("LOG_LEVEL", c.Logging.Level)

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
	if origins := envList("WEB_ALLOWED_ORIGINS"); len(origins) > 0 {
		c.Web.AllowedOrigins = origins
	}
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendDirect
	}
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-2"
	}
	if c.Storage.GalleryPrefix == "" {
		c.Storage.GalleryPrefix = constants.DefaultGalleryPrefix
	}
	if c.Recognition.CollectionID == "" {
		c.Recognition.CollectionID = constants.DefaultCollectionID
	}
	if c.Recognition.MinSimilarity <= 0 {
		c.Recognition.MinSimilarity = constants.DefaultMinSimilarity
	}
	if c.Recognition.MaxResults <= 0 {
		c.Recognition.MaxResults = constants.DefaultMaxResults
	}
	if c.Recognition.PrefixToken == "" {
		c.Recognition.PrefixToken = constants.DefaultExternalIDPrefixToken
	}
	if c.Proxy.URL == "" {
		c.Proxy.URL = "http://localhost:5000"
	}
	if c.Proxy.PrefixToken == "" {
		c.Proxy.PrefixToken = constants.DefaultProxyPrefixToken
	}
	if c.Proxy.TimeoutSec <= 0 {
		c.Proxy.TimeoutSec = int(constants.DefaultProxyTimeout.Seconds())
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 2
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port <= 0 {
		c.Web.Port = 5000
	}
}

// Validate checks the settings the selected backend needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDirect:
		if c.Storage.Bucket == "" {
			return errors.New("S3_BUCKET is required for the direct backend")
		}
	case BackendProxy:
		if _, err := url.ParseRequestURI(c.Proxy.URL); err != nil {
			return fmt.Errorf("invalid PROXY_URL %q: %w", c.Proxy.URL, err)
		}
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendDirect, BackendProxy, c.Backend)
	}
	if c.Recognition.MinSimilarity > 100 {
		return fmt.Errorf("min similarity must be between 0 and 100, got %v", c.Recognition.MinSimilarity)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
