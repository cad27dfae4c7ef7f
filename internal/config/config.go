package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int `yaml:"port" json:"port"`
	} `yaml:"server" json:"server"`
	Redis struct {
		Address     string        `yaml:"address" json:"address"`
		Password    string        `yaml:"password" json:"password"`
		DB          int           `yaml:"db" json:"db"`
		DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	} `yaml:"redis" json:"redis"`
	JWT struct {
		Secret            string `yaml:"secret" json:"secret"`
		ExpirationMinutes int    `yaml:"expiration_minutes" json:"expiration_minutes"`
	} `yaml:"jwt" json:"jwt"`
	Hasura struct {
		Endpoint    string        `yaml:"endpoint" json:"endpoint"`
		AdminSecret string        `yaml:"admin_secret" json:"admin_secret"`
		MaxRetries  int           `yaml:"max_retries" json:"max_retries"`
		RetryDelay  time.Duration `yaml:"retry_delay" json:"retry_delay"`
		Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"hasura" json:"hasura"`
	Workflow struct {
		BaseURL string `yaml:"base_url" json:"base_url"`
		APIKey  string `yaml:"api_key" json:"api_key"`
	} `yaml:"workflow" json:"workflow"`
	Cache struct {
		TTL           time.Duration `yaml:"ttl" json:"ttl"`
		AssumedCostMs float64       `yaml:"assumed_cost_ms" json:"assumed_cost_ms"`
	} `yaml:"cache" json:"cache"`
	Orders struct {
		Retention     time.Duration `yaml:"retention" json:"retention"`
		SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
		StageDelay    time.Duration `yaml:"stage_delay" json:"stage_delay"`
	} `yaml:"orders" json:"orders"`
}

// LoadConfig loads the application configuration from defaults, environment
// variables and an optional config.yaml, in that order of precedence.
func LoadConfig() (*Config, error) {
	config := &Config{}

	config.Server.Port = 8080

	config.Redis.Address = "localhost:6379"
	config.Redis.Password = ""
	config.Redis.DB = 0
	config.Redis.DialTimeout = 5 * time.Second

	config.JWT.Secret = "your-jwt-secret"
	config.JWT.ExpirationMinutes = 30

	config.Hasura.Endpoint = "http://localhost:8081/v1/graphql"
	config.Hasura.AdminSecret = ""
	config.Hasura.MaxRetries = 3
	config.Hasura.RetryDelay = 2 * time.Second
	config.Hasura.Timeout = 10 * time.Second

	config.Workflow.BaseURL = "http://localhost:5678"
	config.Workflow.APIKey = ""

	config.Cache.TTL = time.Hour
	config.Cache.AssumedCostMs = 100

	config.Orders.Retention = 24 * time.Hour
	config.Orders.SweepInterval = 10 * time.Minute
	config.Orders.StageDelay = 500 * time.Millisecond

	// Environment overrides
	if port, err := strconv.Atoi(os.Getenv("SERVER_PORT")); err == nil {
		config.Server.Port = port
	}

	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		config.Redis.Address = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		config.Redis.DB = db
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.JWT.Secret = secret
	}
	if exp, err := strconv.Atoi(os.Getenv("JWT_EXPIRATION_MINUTES")); err == nil {
		config.JWT.ExpirationMinutes = exp
	}

	if endpoint := os.Getenv("HASURA_ENDPOINT"); endpoint != "" {
		config.Hasura.Endpoint = endpoint
	}
	if secret := os.Getenv("HASURA_ADMIN_SECRET"); secret != "" {
		config.Hasura.AdminSecret = secret
	}
	if retries, err := strconv.Atoi(os.Getenv("HASURA_MAX_RETRIES")); err == nil {
		config.Hasura.MaxRetries = retries
	}

	if baseURL := os.Getenv("N8N_BASE_URL"); baseURL != "" {
		config.Workflow.BaseURL = baseURL
	}
	if apiKey := os.Getenv("N8N_API_KEY"); apiKey != "" {
		config.Workflow.APIKey = apiKey
	}

	if seconds, err := strconv.Atoi(os.Getenv("REDIS_EXPIRATION")); err == nil {
		config.Cache.TTL = time.Duration(seconds) * time.Second
	}
	if ms, err := strconv.ParseFloat(os.Getenv("CACHE_ASSUMED_COST_MS"), 64); err == nil && ms > 0 {
		config.Cache.AssumedCostMs = ms
	}

	if hours, err := strconv.Atoi(os.Getenv("ORDER_RETENTION_HOURS")); err == nil && hours > 0 {
		config.Orders.Retention = time.Duration(hours) * time.Hour
	}

	// Optional config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/saas-backend")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		if viper.IsSet("server.port") {
			config.Server.Port = viper.GetInt("server.port")
		}
		if viper.IsSet("redis.address") {
			config.Redis.Address = viper.GetString("redis.address")
		}
		if viper.IsSet("redis.password") {
			config.Redis.Password = viper.GetString("redis.password")
		}
		if viper.IsSet("redis.db") {
			config.Redis.DB = viper.GetInt("redis.db")
		}
		if viper.IsSet("jwt.secret") {
			config.JWT.Secret = viper.GetString("jwt.secret")
		}
		if viper.IsSet("jwt.expiration_minutes") {
			config.JWT.ExpirationMinutes = viper.GetInt("jwt.expiration_minutes")
		}
		if viper.IsSet("hasura.endpoint") {
			config.Hasura.Endpoint = viper.GetString("hasura.endpoint")
		}
		if viper.IsSet("hasura.admin_secret") {
			config.Hasura.AdminSecret = viper.GetString("hasura.admin_secret")
		}
		if viper.IsSet("hasura.max_retries") {
			config.Hasura.MaxRetries = viper.GetInt("hasura.max_retries")
		}
		if viper.IsSet("hasura.retry_delay") {
			config.Hasura.RetryDelay = viper.GetDuration("hasura.retry_delay")
		}
		if viper.IsSet("workflow.base_url") {
			config.Workflow.BaseURL = viper.GetString("workflow.base_url")
		}
		if viper.IsSet("workflow.api_key") {
			config.Workflow.APIKey = viper.GetString("workflow.api_key")
		}
		if viper.IsSet("cache.ttl") {
			config.Cache.TTL = viper.GetDuration("cache.ttl")
		}
		if viper.IsSet("cache.assumed_cost_ms") {
			config.Cache.AssumedCostMs = viper.GetFloat64("cache.assumed_cost_ms")
		}
		if viper.IsSet("orders.retention") {
			config.Orders.Retention = viper.GetDuration("orders.retention")
		}
		if viper.IsSet("orders.sweep_interval") {
			config.Orders.SweepInterval = viper.GetDuration("orders.sweep_interval")
		}
		if viper.IsSet("orders.stage_delay") {
			config.Orders.StageDelay = viper.GetDuration("orders.stage_delay")
		}
	}

	return config, nil
}
