package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Fetch        FetchConfig
	Sync         SyncConfig
	Reconciler   ReconcilerConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Fetch.parseOverrides(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"IMAGESYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"IMAGESYNC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"IMAGESYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"IMAGESYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"IMAGESYNC_DB_DSN"`
	Driver string `envconfig:"IMAGESYNC_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"IMAGESYNC_DB_HOST"`
	Port     int    `envconfig:"IMAGESYNC_DB_PORT" default:"5432"`
	User     string `envconfig:"IMAGESYNC_DB_USER"`
	Password string `envconfig:"IMAGESYNC_DB_PASSWORD"`
	Name     string `envconfig:"IMAGESYNC_DB_NAME"`
	SSLMode  string `envconfig:"IMAGESYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"IMAGESYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"IMAGESYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"IMAGESYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"IMAGESYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"IMAGESYNC_REDIS_URL"`
	Address      string        `envconfig:"IMAGESYNC_REDIS_ADDR"`
	Password     string        `envconfig:"IMAGESYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"IMAGESYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"IMAGESYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"IMAGESYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"IMAGESYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"IMAGESYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"IMAGESYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"IMAGESYNC_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"IMAGESYNC_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"IMAGESYNC_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"IMAGESYNC_GCS_BUCKET_NAME" required:"true"`
	// PublicBaseURL overrides the storage.googleapis.com host when a CDN
	// fronts the bucket.
	PublicBaseURL string `envconfig:"IMAGESYNC_GCS_PUBLIC_BASE_URL"`
}

// FetchConfig carries per-host policy for the supplier fetch client.
type FetchConfig struct {
	Timeout      time.Duration `envconfig:"IMAGESYNC_FETCH_TIMEOUT" default:"30s"`
	MaxBodyBytes int64         `envconfig:"IMAGESYNC_FETCH_MAX_BODY_BYTES" default:"33554432"`
	UserAgent    string        `envconfig:"IMAGESYNC_FETCH_USER_AGENT" default:"imagesync/1.0"`

	// HeaderOverrides is "host=Header:Value|Header:Value;host2=...". Some
	// supplier hosts reject default clients without a browser UA/Referer.
	HeaderOverrides string `envconfig:"IMAGESYNC_FETCH_HEADER_OVERRIDES"`
	// InsecureTLSHosts lists hosts allowed to skip certificate validation.
	// Honored only outside prod; the toggle is per-transport, never global.
	InsecureTLSHosts []string `envconfig:"IMAGESYNC_FETCH_INSECURE_TLS_HOSTS"`
	// PreferIPv4Hosts lists hosts whose DNS answers should prefer A records.
	PreferIPv4Hosts []string `envconfig:"IMAGESYNC_FETCH_PREFER_IPV4_HOSTS"`

	headerOverrides map[string]map[string]string
}

// HostHeaders returns the configured extra headers for a host, or nil.
func (f FetchConfig) HostHeaders(host string) map[string]string {
	return f.headerOverrides[strings.ToLower(host)]
}

func (f *FetchConfig) parseOverrides() error {
	if strings.TrimSpace(f.HeaderOverrides) == "" {
		return nil
	}
	parsed := make(map[string]map[string]string)
	for _, hostEntry := range strings.Split(f.HeaderOverrides, ";") {
		hostEntry = strings.TrimSpace(hostEntry)
		if hostEntry == "" {
			continue
		}
		host, headerList, ok := strings.Cut(hostEntry, "=")
		if !ok {
			return fmt.Errorf("invalid fetch header override %q", hostEntry)
		}
		headers := make(map[string]string)
		for _, header := range strings.Split(headerList, "|") {
			name, value, ok := strings.Cut(header, ":")
			if !ok {
				return fmt.Errorf("invalid fetch header %q for host %q", header, host)
			}
			headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
		parsed[strings.ToLower(strings.TrimSpace(host))] = headers
	}
	f.headerOverrides = parsed
	return nil
}

type SyncConfig struct {
	Concurrency     int           `envconfig:"IMAGESYNC_SYNC_CONCURRENCY" default:"3"`
	ChunkSize       int           `envconfig:"IMAGESYNC_SYNC_CHUNK_SIZE" default:"20"`
	InterChunkDelay time.Duration `envconfig:"IMAGESYNC_SYNC_INTER_CHUNK_DELAY" default:"2s"`
	// StaleProcessingAfter bounds how long a row may sit in processing
	// before the cron requeue reclaims it.
	StaleProcessingAfter time.Duration `envconfig:"IMAGESYNC_SYNC_STALE_PROCESSING_AFTER" default:"1h"`
}

type ReconcilerConfig struct {
	TrashRetention  time.Duration `envconfig:"IMAGESYNC_RECONCILER_TRASH_RETENTION" default:"720h"`
	BatchRetention  time.Duration `envconfig:"IMAGESYNC_RECONCILER_BATCH_RETENTION" default:"168h"`
	CronInterval    time.Duration `envconfig:"IMAGESYNC_RECONCILER_CRON_INTERVAL" default:"24h"`
	VerifierTimeout time.Duration `envconfig:"IMAGESYNC_RECONCILER_VERIFIER_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"IMAGESYNC_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for _, field := range []struct {
		env   string
		value string
	}{
		{"IMAGESYNC_DB_HOST", db.Host},
		{"IMAGESYNC_DB_USER", db.User},
		{"IMAGESYNC_DB_NAME", db.Name},
	} {
		if field.value == "" {
			missing = append(missing, field.env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either IMAGESYNC_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
