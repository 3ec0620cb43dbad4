package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/risklists/internal/risk/domain"
)

// envPrefix is shared by the process environment and the dotenv file.
const envPrefix = "UMBRELLA_"

// AppConfig holds configuration values parsed from the dotenv file and environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// BaseURL is the Umbrella API root; reports and policies paths hang off it.
	BaseURL string `koanf:"base_url" validate:"required,base_url"`

	// AuthURL is the OAuth2 client-credentials token endpoint.
	AuthURL string `koanf:"auth_url" validate:"required,base_url"`

	AppDiscoveryKey    string `koanf:"app_discovery_api_key"`
	AppDiscoverySecret string `koanf:"app_discovery_api_secret"`
	PoliciesKey        string `koanf:"policies_api_key"`
	PoliciesSecret     string `koanf:"policies_api_secret"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `koanf:"timeout" validate:"required,gt=0"`

	// RetryMax is the number of automatic retries on rate limiting or
	// server errors. Zero surfaces the first failure to the operator.
	RetryMax int `koanf:"retry_max" validate:"gte=0,lte=10"`

	// PageLimit is the page size requested from paginated endpoints.
	PageLimit int `koanf:"page_limit" validate:"required,gte=1,lte=1000"`

	// BatchSize caps the entries sent in one append request (API limit 500).
	BatchSize int `koanf:"batch_size" validate:"required,gte=1,lte=500"`

	// OutputDir is where the extractor writes output_<tier>.json.
	OutputDir string `koanf:"output_dir" validate:"required"`

	// ListAccess is the access mode of destination lists created by the list manager.
	ListAccess string `koanf:"list_access" validate:"required,oneof=block allow"`

	// FetchDetails makes the extractor consult the per-application detail endpoint.
	FetchDetails bool `koanf:"fetch_details"`

	// Exclude appends names to the built-in exclusion set.
	Exclude []string `koanf:"exclude" validate:"dive,required"`

	// ExclusionsFile is an optional plain-text list of further exclusions.
	ExclusionsFile string `koanf:"exclusions_file"`

	// CacheSize is the exclusion decision cache capacity; 0 disables it.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`
}

// Credentials is an OAuth2 client id/secret pair.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// DEFAULT_APP_CONFIG defines the default application configuration settings.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:        "prod",
	LogLevel:   "info",
	BaseURL:    "https://api.umbrella.com",
	AuthURL:    "https://api.umbrella.com/auth/v2/token",
	Timeout:    30 * time.Second,
	RetryMax:   0,
	PageLimit:  100,
	BatchSize:  500,
	OutputDir:  ".",
	ListAccess: "block",
	Exclude:    []string{},
	CacheSize:  1024,
}

// AppDiscoveryCredentials returns the extractor credentials or ErrAuthentication when unset.
func (c *AppConfig) AppDiscoveryCredentials() (Credentials, error) {
	return credentials(c.AppDiscoveryKey, c.AppDiscoverySecret, "APP_DISCOVERY")
}

// PoliciesCredentials returns the list manager credentials or ErrAuthentication when unset.
func (c *AppConfig) PoliciesCredentials() (Credentials, error) {
	return credentials(c.PoliciesKey, c.PoliciesSecret, "POLICIES")
}

func credentials(id, secret, name string) (Credentials, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(secret) == "" {
		return Credentials{}, fmt.Errorf("%w: set %s%s_API_KEY and %s%s_API_SECRET", domain.ErrAuthentication, envPrefix, name, envPrefix, name)
	}
	return Credentials{ClientID: id, ClientSecret: secret}, nil
}

// validBaseURL accepts absolute http(s) URLs with a host.
func validBaseURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

// transformKey strips the prefix, lower-cases the key and splits lists on
// spaces or commas. Keys without the prefix are dropped.
func transformKey(key, value string) (string, any) {
	if !strings.HasPrefix(key, envPrefix) {
		return "", nil
	}
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	value = strings.TrimSpace(value)

	if value == "" {
		return key, value
	}

	if strings.Contains(value, " ") || strings.Contains(value, ",") {
		parts := strings.FieldsFunc(value, func(r rune) bool {
			return r == ' ' || r == ','
		})
		return key, parts
	}

	return key, value
}

// envLoader loads environment variables with the prefix "UMBRELLA_"
// and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: transformKey,
	}), nil)
}

// envFileLoader loads a dotenv file when present. A missing file is not an
// error; the environment alone may carry everything.
var envFileLoader = func(k *koanf.Koanf, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	raw := koanf.New(".")
	if err := raw.Load(file.Provider(path), dotenv.Parser()); err != nil {
		return err
	}
	values := make(map[string]any)
	for key, v := range raw.All() {
		k2, v2 := transformKey(key, fmt.Sprint(v))
		if k2 == "" {
			continue
		}
		values[k2] = v2
	}
	return k.Load(confmap.Provider(values, "."), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "base_url" rule with the provided validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("base_url", validBaseURL)
}

// Load returns an AppConfig built from defaults, then the dotenv file at
// envFile (if it exists), then the process environment. The result is validated.
func Load(envFile string) (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envFileLoader(k, envFile)
	if err != nil {
		return nil, fmt.Errorf("error loading env file %s: %w", envFile, err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
