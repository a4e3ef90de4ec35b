package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	LetterTrack LetterTrackConfig `yaml:"lettertrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                         string `yaml:"host"`
	Port                         int    `yaml:"port"`
	LetterStatusUpdatedTopicName string `yaml:"letter_status_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LetterTrackConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	LaPosteBaseURL         string `yaml:"la_poste_base_url"`
	LaPosteAPIKey          string `yaml:"la_poste_api_key"`
	ProviderTimeoutSeconds int    `yaml:"provider_timeout_seconds"`

	CurrentStatusTTLSeconds int `yaml:"current_status_ttl_seconds"`

	// Периодические проходы (optional). 0 — проходы только по HTTP-запросу.
	SweepIntervalSeconds    int `yaml:"sweep_interval_seconds"`
	SweepRateLimitPerMinute int `yaml:"sweep_rate_limit_per_minute"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
