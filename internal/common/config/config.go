package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Firebase      FirebaseConfig          `mapstructure:"firebase"`
	Push          PushConfig              `mapstructure:"push"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Server        ServerConfig            `mapstructure:"server"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Registry      RegistryConfig          `mapstructure:"registry"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
	Index     string   `mapstructure:"index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// FirebaseConfig points at the service account used for FCM.
type FirebaseConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// PushConfig selects the gateway and the platform hints attached to every send.
type PushConfig struct {
	Provider string `mapstructure:"provider"` // fcm or sns
	Android  struct {
		Icon  string `mapstructure:"icon"`
		Color string `mapstructure:"color"`
		Sound string `mapstructure:"sound"`
	} `mapstructure:"android"`
	APNS struct {
		Sound string `mapstructure:"sound"`
		Badge int    `mapstructure:"badge"`
	} `mapstructure:"apns"`
}

// IntegrationConfig holds settings for AWS services.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled     bool     `mapstructure:"enabled"`
			FromEmail   string   `mapstructure:"from_email"`
			AdminEmails []string `mapstructure:"admin_emails"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled bool `mapstructure:"enabled"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// NotificationConfig tunes the delivery pipeline and its sweeps.
type NotificationConfig struct {
	SendBatchSize       int `mapstructure:"send_batch_size"`
	ValidationBatchSize int `mapstructure:"validation_batch_size"`
	StatsWindowDays     int `mapstructure:"stats_window_days"`
	RetentionDays       int `mapstructure:"retention_days"`

	// Durations in milliseconds; a zero interval disables that schedule.
	ClaimTTL             int `mapstructure:"claim_ttl"`
	StatsCacheTTL        int `mapstructure:"stats_cache_ttl"`
	RetentionInterval    int `mapstructure:"retention_interval"`
	TokenSweepInterval   int `mapstructure:"token_sweep_interval"`
	ListenerMinReconnect int `mapstructure:"listener_min_reconnect"`
	ListenerMaxReconnect int `mapstructure:"listener_max_reconnect"`

	NotifyChannel     string `mapstructure:"notify_channel"`
	ListenerEnabled   bool   `mapstructure:"listener_enabled"`
	MaxConcurrent     int    `mapstructure:"max_concurrent"`
	StaleAfterMinutes int    `mapstructure:"stale_after_minutes"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// RegistryConfig locates an optional activity registry override.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
