package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	ERP       ERPConfig
	Customer  CustomerConfig
	Documents DocumentsConfig
	Sync      SyncConfig
	Stores    map[string]StoreConfig
	Locations LocationsConfig
	Freight   map[string]map[string]FreightBracketConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings for the sync journal
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings for the marker cache
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// FallbackInMemory allows degrading to the in-process marker store
	// when Redis is unreachable
	FallbackInMemory bool
}

// HTTPConfig holds the admin API server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// ERPConfig holds the ERP service-layer connection settings
type ERPConfig struct {
	BaseURL        string
	CompanyDB      string
	Username       string
	Password       string
	RequestTimeout time.Duration
	// ExternalRefField is the user field the integration stamps its
	// platform identifiers into
	ExternalRefField string
	// GiftCardRefField carries the platform gift-card ID on document lines
	GiftCardRefField string
	// InsecureSkipVerify disables TLS verification for self-signed
	// on-premise installs. Never enable outside a trusted network.
	InsecureSkipVerify bool
}

// StoreConfig holds one storefront's API access settings
type StoreConfig struct {
	Domain        string `mapstructure:"domain" validate:"required"`
	AccessToken   string `mapstructure:"access_token" validate:"required"`
	APIVersion    string `mapstructure:"api_version"`
	Enabled       bool   `mapstructure:"enabled"`
	International bool   `mapstructure:"international"`
	// LocationAliases maps platform retail-location IDs (bare numeric
	// part) to location table keys. Orders without a retail location
	// resolve to the "web" location.
	LocationAliases map[string]string `mapstructure:"location_aliases"`
}

// CustomerConfig tunes customer resolution
type CustomerConfig struct {
	CountryPrefix        string
	CodePrefix           string
	FallbackCustomerCode string
}

// DocumentsConfig tunes document construction
type DocumentsConfig struct {
	GiftCardItemCode string
	GiftCardGateways []string
	CashGateways     []string
}

// SyncConfig holds workflow pass settings
type SyncConfig struct {
	OrdersEnabled   bool
	ReturnsEnabled  bool
	RecoveryEnabled bool
	OrdersInterval  time.Duration
	ReturnsInterval time.Duration
	BatchSize       int
	MaxPages        int
	Lookback        time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	MarkerTTL       time.Duration
	MarkerEnabled   bool
	WorkerCount     int
}

// SeriesTableConfig holds the ERP numbering series per document kind
type SeriesTableConfig struct {
	Invoices         int `mapstructure:"invoices" validate:"required"`
	CreditNotes      int `mapstructure:"credit_notes" validate:"required"`
	IncomingPayments int `mapstructure:"incoming_payments" validate:"required"`
	OutgoingPayments int `mapstructure:"outgoing_payments" validate:"required"`
}

// LocationTableConfig is the per-location mapping table as configured
type LocationTableConfig struct {
	Type            string                       `mapstructure:"type" validate:"required,oneof=online store"`
	Warehouse       string                       `mapstructure:"warehouse" validate:"required"`
	CostingCode1    string                       `mapstructure:"costing_code_1"`
	CostingCode2    string                       `mapstructure:"costing_code_2"`
	CostingCode3    string                       `mapstructure:"costing_code_3"`
	Series          SeriesTableConfig            `mapstructure:"series"`
	SalesPersonCode int                          `mapstructure:"sales_person_code"`
	GroupCode       int                          `mapstructure:"group_code"`
	CashAccount     string                       `mapstructure:"cash_account"`
	StoreTransfers  map[string]map[string]string `mapstructure:"store_transfers"`
	Transfers       map[string]string            `mapstructure:"transfers"`
	Cards           map[string]string            `mapstructure:"cards"`
}

// LocationsConfig holds all location tables plus the default
type LocationsConfig struct {
	Default string                         `mapstructure:"default" validate:"required"`
	Tables  map[string]LocationTableConfig `mapstructure:"tables" validate:"required,dive"`
}

// FreightBracketConfig is one shipping bracket as configured
type FreightBracketConfig struct {
	RevenueCode   int     `mapstructure:"revenue_code" validate:"required"`
	RevenueAmount float64 `mapstructure:"revenue_amount" validate:"required"`
	CostCode      int     `mapstructure:"cost_code" validate:"required"`
	CostAmount    float64 `mapstructure:"cost_amount" validate:"required"`
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SYNC_ prefix (e.g., SYNC_ERP_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:             v.GetString("redis.host"),
			Port:             v.GetInt("redis.port"),
			Password:         v.GetString("redis.password"),
			DB:               v.GetInt("redis.db"),
			FallbackInMemory: v.GetBool("redis.fallback_in_memory"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		ERP: ERPConfig{
			BaseURL:            v.GetString("erp.base_url"),
			CompanyDB:          v.GetString("erp.company_db"),
			Username:           v.GetString("erp.username"),
			Password:           v.GetString("erp.password"),
			RequestTimeout:     v.GetDuration("erp.request_timeout"),
			ExternalRefField:   v.GetString("erp.external_ref_field"),
			GiftCardRefField:   v.GetString("erp.gift_card_ref_field"),
			InsecureSkipVerify: v.GetBool("erp.insecure_skip_verify"),
		},
		Customer: CustomerConfig{
			CountryPrefix:        v.GetString("customer.country_prefix"),
			CodePrefix:           v.GetString("customer.code_prefix"),
			FallbackCustomerCode: v.GetString("customer.fallback_code"),
		},
		Documents: DocumentsConfig{
			GiftCardItemCode: v.GetString("documents.gift_card_item_code"),
			GiftCardGateways: v.GetStringSlice("documents.gift_card_gateways"),
			CashGateways:     v.GetStringSlice("documents.cash_gateways"),
		},
		Sync: SyncConfig{
			OrdersEnabled:   v.GetBool("sync.orders_enabled"),
			ReturnsEnabled:  v.GetBool("sync.returns_enabled"),
			RecoveryEnabled: v.GetBool("sync.recovery_enabled"),
			OrdersInterval:  v.GetDuration("sync.orders_interval"),
			ReturnsInterval: v.GetDuration("sync.returns_interval"),
			BatchSize:       v.GetInt("sync.batch_size"),
			MaxPages:        v.GetInt("sync.max_pages"),
			Lookback:        v.GetDuration("sync.lookback"),
			MaxRetries:      v.GetInt("sync.max_retries"),
			RetryBaseDelay:  v.GetDuration("sync.retry_base_delay"),
			RetryMaxDelay:   v.GetDuration("sync.retry_max_delay"),
			MarkerTTL:       v.GetDuration("sync.marker_ttl"),
			MarkerEnabled:   v.GetBool("sync.marker_enabled"),
			WorkerCount:     v.GetInt("sync.worker_count"),
		},
	}

	if err := v.UnmarshalKey("stores", &cfg.Stores); err != nil {
		return nil, fmt.Errorf("error parsing stores table: %w", err)
	}
	if err := v.UnmarshalKey("locations", &cfg.Locations); err != nil {
		return nil, fmt.Errorf("error parsing locations table: %w", err)
	}
	if err := v.UnmarshalKey("freight", &cfg.Freight); err != nil {
		return nil, fmt.Errorf("error parsing freight table: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "erpsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "erpsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.ERP.RequestTimeout == 0 {
		cfg.ERP.RequestTimeout = 90 * time.Second
	}
	if cfg.ERP.ExternalRefField == "" {
		cfg.ERP.ExternalRefField = "U_ExternalOrderID"
	}
	if cfg.ERP.GiftCardRefField == "" {
		cfg.ERP.GiftCardRefField = "U_GiftCardID"
	}
	if cfg.Customer.CodePrefix == "" {
		cfg.Customer.CodePrefix = "C"
	}
	if cfg.Documents.GiftCardGateways == nil {
		cfg.Documents.GiftCardGateways = []string{"gift_card"}
	}
	if cfg.Sync.OrdersInterval == 0 {
		cfg.Sync.OrdersInterval = 10 * time.Minute
	}
	if cfg.Sync.ReturnsInterval == 0 {
		cfg.Sync.ReturnsInterval = 30 * time.Minute
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 50
	}
	if cfg.Sync.MaxPages == 0 {
		cfg.Sync.MaxPages = 20
	}
	if cfg.Sync.MaxRetries == 0 {
		cfg.Sync.MaxRetries = 3
	}
	if cfg.Sync.RetryBaseDelay == 0 {
		cfg.Sync.RetryBaseDelay = 2 * time.Second
	}
	if cfg.Sync.RetryMaxDelay == 0 {
		cfg.Sync.RetryMaxDelay = time.Minute
	}
	if cfg.Sync.MarkerTTL == 0 {
		cfg.Sync.MarkerTTL = 24 * time.Hour
	}
	if cfg.Sync.WorkerCount == 0 {
		cfg.Sync.WorkerCount = 2
	}
	for key, store := range cfg.Stores {
		if store.APIVersion == "" {
			store.APIVersion = "2024-10"
			cfg.Stores[key] = store
		}
	}
}

// Validate checks structural and cross-field constraints. The mapping tables
// are checked with struct tags; the flat sections with explicit rules.
func (c *Config) Validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.ERP.BaseURL == "" || c.ERP.Username == "" || c.ERP.Password == "" {
			return fmt.Errorf("erp.base_url, erp.username and erp.password are required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.ERP.InsecureSkipVerify {
			return fmt.Errorf("erp.insecure_skip_verify must be false in production")
		}
		if len(c.Stores) == 0 {
			return fmt.Errorf("at least one store must be configured in production")
		}
	}

	validate := validator.New()
	for key, store := range c.Stores {
		if !store.Enabled {
			continue
		}
		if err := validate.Struct(store); err != nil {
			return fmt.Errorf("store %q: %w", key, err)
		}
	}
	if len(c.Locations.Tables) > 0 {
		if err := validate.Struct(c.Locations); err != nil {
			return fmt.Errorf("locations: %w", err)
		}
		if _, ok := c.Locations.Tables[c.Locations.Default]; !ok {
			return fmt.Errorf("locations.default %q has no table", c.Locations.Default)
		}
	}
	for store, brackets := range c.Freight {
		for amount, bracket := range brackets {
			if err := validate.Struct(bracket); err != nil {
				return fmt.Errorf("freight bracket %s/%s: %w", store, amount, err)
			}
		}
	}

	return nil
}

// DSN returns the journal database connection string with escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// EnabledStoreKeys returns the keys of enabled stores in no particular order
func (c *Config) EnabledStoreKeys() []string {
	keys := make([]string, 0, len(c.Stores))
	for key, store := range c.Stores {
		if store.Enabled {
			keys = append(keys, key)
		}
	}
	return keys
}

// InternationalStoreKeys returns the keys of stores marked international
func (c *Config) InternationalStoreKeys() []string {
	var keys []string
	for key, store := range c.Stores {
		if store.International {
			keys = append(keys, key)
		}
	}
	return keys
}
