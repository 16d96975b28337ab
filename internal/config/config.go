package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"orderdash/internal/engine"
)

// EnvPrefix is prepended to every environment override, e.g.
// ORDERDASH_DATA_PATH for data.path.
const EnvPrefix = "ORDERDASH"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Data      DataConfig      `mapstructure:"data"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Display   DisplayConfig   `mapstructure:"display"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr      string  `mapstructure:"addr" validate:"required"`
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
}

// DataConfig says where the orders snapshot comes from.
type DataConfig struct {
	Format string `mapstructure:"format" validate:"oneof=csv parquet arrow sql"`
	Path   string `mapstructure:"path" validate:"required_unless=Format sql"`
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=sqlite pgx"`
	DSN    string `mapstructure:"dsn" validate:"required_if=Format sql"`
	Query  string `mapstructure:"query"`
}

type AggregateConfig struct {
	CountColumn   string   `mapstructure:"count_column" validate:"required"`
	SumColumn     string   `mapstructure:"sum_column"`
	Malformed     string   `mapstructure:"malformed" validate:"oneof=skip reject"`
	HistogramBins int      `mapstructure:"histogram_bins" validate:"gte=1,lte=500"`
	StatusExclude []string `mapstructure:"status_exclude"`
}

type DisplayConfig struct {
	Currency string `mapstructure:"currency" validate:"len=3"`
	Locale   string `mapstructure:"locale" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	File   string `mapstructure:"file"`
}

// SetDefaults registers every key so environment overrides are picked up
// by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("data.format", "csv")
	v.SetDefault("data.path", "orders_dataset.csv")
	v.SetDefault("data.driver", "")
	v.SetDefault("data.dsn", "")
	v.SetDefault("data.query", "")
	v.SetDefault("aggregate.count_column", engine.ColOrderID)
	v.SetDefault("aggregate.sum_column", engine.ColDeliveryTime)
	v.SetDefault("aggregate.malformed", "skip")
	v.SetDefault("aggregate.histogram_bins", engine.DefaultHistogramBins)
	v.SetDefault("aggregate.status_exclude", []string{"created", "approved"})
	v.SetDefault("display.currency", "IDR")
	v.SetDefault("display.locale", "id-ID")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
}

// Load resolves configuration from defaults, an optional config file,
// a .env file and ORDERDASH_* environment variables, in increasing priority.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Data.Format == "sql" && c.Data.Driver == "" {
		return errors.New("invalid config: data.driver is required for the sql format")
	}
	return nil
}

// AggregateOptions maps the aggregate section onto engine options.
func (c *Config) AggregateOptions() (engine.AggregateOptions, error) {
	policy, err := engine.ParseMalformedPolicy(c.Aggregate.Malformed)
	if err != nil {
		return engine.AggregateOptions{}, err
	}
	return engine.AggregateOptions{
		Daily: engine.DailyOptions{
			CountColumn: c.Aggregate.CountColumn,
			SumColumn:   c.Aggregate.SumColumn,
			Malformed:   policy,
		},
		StatusExclude: c.Aggregate.StatusExclude,
		HistogramBins: c.Aggregate.HistogramBins,
	}, nil
}
