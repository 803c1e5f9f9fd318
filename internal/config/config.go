package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`
	ClassifierURL   string        `mapstructure:"CLASSIFIER_URL"`
	ClassifyTimeout time.Duration `mapstructure:"CLASSIFY_TIMEOUT"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RuleCacheTTL    time.Duration `mapstructure:"RULE_CACHE_TTL"`
	KafkaBrokers    string        `mapstructure:"KAFKA_BROKERS"`
	DecisionsTopic  string        `mapstructure:"KAFKA_DECISIONS_TOPIC"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("CLASSIFY_TIMEOUT", "3s")
	v.SetDefault("RULE_CACHE_TTL", "5m")
	v.SetDefault("KAFKA_DECISIONS_TOPIC", "routing-decisions")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// BrokerList splits KAFKA_BROKERS into addresses; empty means Kafka is off.
func (c Config) BrokerList() []string {
	if strings.TrimSpace(c.KafkaBrokers) == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}
