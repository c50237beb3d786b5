package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Cart         CartConfig
	Notify       NotifyConfig
	GCP          GCPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DAILYLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"DAILYLEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"DAILYLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DAILYLEDGER_LOG_WARN_STACK" default:"false"`

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `envconfig:"DAILYLEDGER_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DAILYLEDGER_DB_DSN"`
	Driver string `envconfig:"DAILYLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DAILYLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"DAILYLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DAILYLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"DAILYLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"DAILYLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"DAILYLEDGER_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"DAILYLEDGER_SQLITE_PATH" default:"dailyledger.db"`

	MaxOpenConns    int           `envconfig:"DAILYLEDGER_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DAILYLEDGER_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DAILYLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DAILYLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DAILYLEDGER_REDIS_URL"`
	Address      string        `envconfig:"DAILYLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"DAILYLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"DAILYLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DAILYLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DAILYLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DAILYLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DAILYLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DAILYLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured at all.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DAILYLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DAILYLEDGER_AUTO_MIGRATE" default:"false"`
	RedisLock   bool `envconfig:"DAILYLEDGER_FEATURE_REDIS_LOCK" default:"false"`
	GridCache   bool `envconfig:"DAILYLEDGER_FEATURE_GRID_CACHE" default:"false"`
}

// LedgerConfig describes where each tenant's grids live and how dates are read.
type LedgerConfig struct {
	Tenants       map[string]string `envconfig:"DAILYLEDGER_TENANTS" required:"true"`
	PricesRange   string            `envconfig:"DAILYLEDGER_PRICES_RANGE" default:"Prices"`
	UsersRange    string            `envconfig:"DAILYLEDGER_USERS_RANGE" default:"Users"`
	OrdersRange   string            `envconfig:"DAILYLEDGER_ORDERS_RANGE" default:"Orders"`
	TimeZone      string            `envconfig:"DAILYLEDGER_TIME_ZONE" default:"Asia/Kolkata"`
	DateLayout    string            `envconfig:"DAILYLEDGER_DATE_LAYOUT" default:"02/01/2006"`
	DefaultCutoff string            `envconfig:"DAILYLEDGER_DEFAULT_CUTOFF" default:"20:00"`
	VendorName    string            `envconfig:"DAILYLEDGER_VENDOR_NAME" default:"SEWA Lilotri"`
	CollateLang   string            `envconfig:"DAILYLEDGER_COLLATE_LANG" default:"en"`
	CacheTTL      time.Duration     `envconfig:"DAILYLEDGER_GRID_CACHE_TTL" default:"30s"`
	LockTTL       time.Duration     `envconfig:"DAILYLEDGER_LEDGER_LOCK_TTL" default:"15s"`
}

// SheetID resolves a tenant name to its sheet identifier.
func (l LedgerConfig) SheetID(tenant string) (string, bool) {
	id, ok := l.Tenants[strings.TrimSpace(tenant)]
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// Ranges returns the range names read for every request, in a stable order.
func (l LedgerConfig) Ranges() []string {
	return []string{l.PricesRange, l.UsersRange, l.OrdersRange}
}

func (l LedgerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(l.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", l.TimeZone, err)
	}
	return loc, nil
}

func (l LedgerConfig) validate() error {
	if len(l.Tenants) == 0 {
		return fmt.Errorf("%s must list at least one tenant", EnvTenants)
	}
	if _, err := l.Location(); err != nil {
		return err
	}
	if _, err := time.Parse("15:04", l.DefaultCutoff); err != nil {
		return fmt.Errorf("%s must be HH:MM: %w", EnvDefaultCutoff, err)
	}
	return nil
}

type CartConfig struct {
	Granularity  int    `envconfig:"DAILYLEDGER_CART_GRANULARITY" default:"50"`
	OrderMeasure string `envconfig:"DAILYLEDGER_CART_ORDER_MEASURE" default:"gm"`
	MaxQuantity  int64  `envconfig:"DAILYLEDGER_CART_MAX_QUANTITY" default:"1000000"`
}

type NotifyConfig struct {
	Enabled     bool          `envconfig:"DAILYLEDGER_NOTIFY_ENABLED" default:"false"`
	Topic       string        `envconfig:"DAILYLEDGER_NOTIFY_TOPIC" default:"dailyledger-notifications"`
	Concurrency int           `envconfig:"DAILYLEDGER_NOTIFY_CONCURRENCY" default:"4"`
	Timeout     time.Duration `envconfig:"DAILYLEDGER_NOTIFY_TIMEOUT" default:"20s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"DAILYLEDGER_GCP_PROJECT_ID"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
