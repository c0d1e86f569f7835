package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const defaultConfigFile = "/config/zxmirror.yaml"

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" validate:"required"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`

	ArchiveRoot string `koanf:"archive_root" default:"/archive" validate:"required"`
	CacheDir    string `koanf:"cache_dir" default:"/config/cache"`

	CatalogBaseURL           string  `koanf:"catalog_base_url" default:"https://zxart.ee" validate:"required,url"`
	CatalogPageSize          int     `koanf:"catalog_page_size" default:"100" validate:"min=1,max=1000"`
	CatalogRequestsPerSecond float64 `koanf:"catalog_requests_per_second" default:"2"`
	UserAgent                string  `koanf:"user_agent" default:"zxmirror/1.0 (+https://github.com/zxarchive/zxmirror)"`

	FileURLTemplate    string        `koanf:"file_url_template" default:"https://zxart.ee/zxfile/id:{releaseId}/fileId:{fileId}/"`
	DownloadTimeout    time.Duration `koanf:"download_timeout" default:"30s"`
	DownloadRetryLimit int           `koanf:"download_retry_limit" default:"5" validate:"min=1"`
	DownloadRetryDelay time.Duration `koanf:"download_retry_delay" default:"3s"`

	BucketCeiling  int `koanf:"bucket_ceiling" default:"400" validate:"min=1"`
	TitleMaxLength int `koanf:"title_max_length" default:"120" validate:"min=0"`

	WorkerPollInterval time.Duration `koanf:"worker_poll_interval" default:"5s"`
	TaskLeaseTimeout   time.Duration `koanf:"task_lease_timeout" default:"30m"`

	ServerEnabled bool   `koanf:"server_enabled"`
	ServerHost    string `koanf:"server_host" default:"0.0.0.0"`
	ServerPort    int    `koanf:"server_port" default:"3690"`
}

// New loads the config from the yaml file named by CONFIG_FILE (if it exists)
// and then from environment variables, which take precedence.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	known := knownKeys()
	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config suitable for tests. Paths that touch the
// filesystem are expected to be overridden with t.TempDir().
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	cfg.DownloadRetryDelay = 0
	cfg.CatalogRequestsPerSecond = 0
	return cfg
}

func validate(cfg *Config) error {
	v := validator.New()
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.WithStack(err)
	}

	fe := verrs[0]
	key := toSnakeCase(fe.StructField())
	if fe.Tag() == "required" {
		return errors.Errorf("missing required config: set %s or %s in the config file", strings.ToUpper(key), key)
	}
	return errors.Errorf("invalid config value for %s: failed %q validation", key, fe.Tag())
}

func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		keys[t.Field(i).Tag.Get("koanf")] = struct{}{}
	}
	return keys
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
