package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"mortgage-rate-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Logging      logging.Config     `mapstructure:"logging"`
	Alert        AlertConfig        `mapstructure:"alert"`
	Sources      SourcesConfig      `mapstructure:"sources"`
	Data         DataConfig         `mapstructure:"data"`
	Notification NotificationConfig `mapstructure:"notification"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Export       ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// AlertConfig defines the alert condition.
type AlertConfig struct {
	TargetRate  float64 `mapstructure:"target_rate"`
	State       string  `mapstructure:"state"`
	DailyReport bool    `mapstructure:"daily_report"`
}

// SourcesConfig governs rate retrieval.
type SourcesConfig struct {
	Preferred      []string      `mapstructure:"preferred"`
	FredAPIKey     string        `mapstructure:"fred_api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// DataConfig locates the observation store.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// NotificationConfig selects and configures the delivery channel.
type NotificationConfig struct {
	Method   string         `mapstructure:"method"`
	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// EmailConfig covers SMTP delivery.
type EmailConfig struct {
	SMTPHost   string   `mapstructure:"smtp_host"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	Sender     string   `mapstructure:"sender"`
	Password   string   `mapstructure:"password"`
	Recipients []string `mapstructure:"recipients"`
}

// TelegramConfig covers bot API delivery.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// SchedulerConfig governs the watch-mode cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// DatabaseConfig encapsulates the optional PostgreSQL archive.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RATEWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ratewatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("alert.target_rate", 6.0)
	v.SetDefault("alert.state", "Oregon")
	v.SetDefault("alert.daily_report", false)

	v.SetDefault("sources.preferred", []string{"fred", "bankrate", "mortgage_news_daily", "freddiemac"})
	v.SetDefault("sources.request_timeout", "30s")
	v.SetDefault("sources.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	v.SetDefault("data.dir", "data")

	v.SetDefault("notification.method", "email")
	v.SetDefault("notification.email.smtp_host", "smtp.gmail.com")
	v.SetDefault("notification.email.smtp_port", 587)
	v.SetDefault("notification.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_interval", false)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x72617465))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("export.max_data_points", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
// Notification channel completeness is checked separately so read-only
// commands work without delivery credentials.
func (c *Config) Validate() error {
	if c.Alert.TargetRate <= 0 || c.Alert.TargetRate >= 20 {
		return fmt.Errorf("alert.target_rate must be between 0 and 20")
	}
	if strings.TrimSpace(c.Alert.State) == "" {
		return fmt.Errorf("alert.state must not be empty")
	}
	if len(c.Sources.Preferred) == 0 {
		return fmt.Errorf("sources.preferred must name at least one source")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must not be empty")
	}
	return nil
}

// ValidateNotification checks that the selected delivery channel is
// fully configured.
func (c *Config) ValidateNotification() error {
	switch c.Notification.Method {
	case "email":
		email := c.Notification.Email
		if email.Sender == "" || email.Password == "" || len(email.Recipients) == 0 {
			return fmt.Errorf("notification.email requires sender, password and recipients")
		}
	case "telegram":
		telegram := c.Notification.Telegram
		if telegram.BotToken == "" {
			return fmt.Errorf("notification.telegram.bot_token must be configured")
		}
		if telegram.ChatID == "" {
			return fmt.Errorf("notification.telegram.chat_id must be configured")
		}
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unknown notification method: %s", c.Notification.Method)
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
