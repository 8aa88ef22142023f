// Package config loads service configuration: built-in defaults, then
// an optional streamfeed.yaml, then environment variables. Env wins so
// container deployments can override a checked-in file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIAddr     string `yaml:"api_addr"`
	GatewayAddr string `yaml:"gateway_addr"`

	ScyllaHosts []string `yaml:"scylla_hosts"`
	Keyspace    string   `yaml:"keyspace"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	RedisAddr string `yaml:"redis_addr"`

	// Retention is the fixed window after which messages expire.
	Retention time.Duration `yaml:"retention"`

	// MaxListLimit clamps the limit parameter of message listing.
	MaxListLimit int `yaml:"max_list_limit"`

	// MentionLimit caps directory search results.
	MentionLimit int `yaml:"mention_limit"`

	// NodeID must be unique per running instance (snowflake node).
	NodeID int64 `yaml:"node_id"`

	JWTSecret string `yaml:"jwt_secret"`

	// Moderators may delete any message.
	Moderators []string `yaml:"moderators"`

	// MemoryBackends runs the store and broker in-process instead of
	// against Scylla/Kafka. Single-instance and development use only.
	MemoryBackends bool `yaml:"memory_backends"`
}

func Default() Config {
	return Config{
		APIAddr:      ":8081",
		GatewayAddr:  ":8080",
		ScyllaHosts:  []string{"localhost:9042"},
		Keyspace:     "streamfeed",
		KafkaBrokers: []string{"localhost:19092"},
		KafkaTopic:   "stream-events",
		RedisAddr:    "localhost:6379",
		Retention:    72 * time.Hour,
		MaxListLimit: 200,
		MentionLimit: 20,
		NodeID:       1,
		JWTSecret:    "my_secret_key",
	}
}

// Load reads path if it exists (missing file is not an error) and then
// applies env overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("API_ADDR"); v != "" {
		c.APIAddr = v
	}
	if v := os.Getenv("GATEWAY_ADDR"); v != "" {
		c.GatewayAddr = v
	}
	if v := os.Getenv("SCYLLA_HOSTS"); v != "" {
		c.ScyllaHosts = strings.Split(v, ",")
	}
	if v := os.Getenv("SCYLLA_KEYSPACE"); v != "" {
		c.Keyspace = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.KafkaTopic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Retention = d
		}
	}
	if v := os.Getenv("NODE_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.NodeID = n
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("MODERATORS"); v != "" {
		c.Moderators = strings.Split(v, ",")
	}
	if v := os.Getenv("MEMORY_BACKENDS"); v != "" {
		c.MemoryBackends = v == "1" || strings.EqualFold(v, "true")
	}
}
