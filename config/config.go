package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Parking  ParkingConfig  `yaml:"parking"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	SpotEventsTopic    string   `yaml:"spot_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
	HeartbeatSeconds   int      `yaml:"heartbeat_seconds"`
	SessionSeconds     int      `yaml:"session_seconds"`
}

type ParkingConfig struct {
	// Timezone is the facility-local zone; every timestamp in the
	// engine is compared in it.
	Timezone            string `yaml:"timezone"`
	BookingHoldMinutes  int    `yaml:"booking_hold_minutes"`
	DefaultGraceMinutes int    `yaml:"default_grace_minutes"`
	BoardCacheSeconds   int    `yaml:"board_cache_seconds"`
}

type WorkerConfig struct {
	ExpirationSweepMinutes int    `yaml:"expiration_sweep_minutes"`
	NotifyWebhookURL       string `yaml:"notify_webhook_url"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
