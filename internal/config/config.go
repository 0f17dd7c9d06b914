// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Export   ExportConfig   `mapstructure:"export"`
	OCR      OCRConfig      `mapstructure:"ocr"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	TemplateTTL time.Duration `mapstructure:"template_ttl"`
}

type KafkaConfig struct {
	Brokers     string        `mapstructure:"brokers"`
	AnchorTopic string        `mapstructure:"anchor_topic"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	BasePath      string `mapstructure:"base_path"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type ExportConfig struct {
	ChunkSize      int    `mapstructure:"chunk_size"`
	FilenameFormat string `mapstructure:"filename_format"`
	VerifyBaseURL  string `mapstructure:"verify_base_url"`
}

type OCRConfig struct {
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoadConfig reads the YAML config. The directory defaults to ./config and
// can be overridden with CONFIG_PATH.
func LoadConfig() (*viper.Viper, error) {
	v := viper.New()

	v.AddConfigPath(GetEnv("CONFIG_PATH", "./config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Defaults plus env overrides are enough to run locally.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	return v, nil
}

// ParseConfig unmarshals the loaded viper instance into Config.
func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")

	v.SetDefault("database.host", GetEnv("DB_HOST", "localhost"))
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", GetEnv("DB_USER", "veriqr"))
	v.SetDefault("database.password", GetEnv("DB_PASSWORD", ""))
	v.SetDefault("database.dbname", GetEnv("DB_NAME", "veriqr"))
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("redis.addr", GetEnv("REDIS_ADDR", "localhost:6379"))
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.template_ttl", "10m")

	v.SetDefault("kafka.brokers", GetEnv("KAFKA_BROKERS", "localhost:9092"))
	v.SetDefault("kafka.anchor_topic", "product-anchoring")
	v.SetDefault("kafka.timeout", "10s")

	v.SetDefault("storage.base_path", "./storage")
	v.SetDefault("storage.public_base_url", "http://localhost:8080/files")

	v.SetDefault("export.chunk_size", 10)
	v.SetDefault("export.filename_format", "{serialNumber}_{productId}")
	v.SetDefault("export.verify_base_url", "http://localhost:8080/api/verify")

	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.timeout", "30s")
}

// GetEnv returns the environment value for key or defaultValue when unset.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
