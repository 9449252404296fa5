package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Shopify  ShopifyConfig  `yaml:"shopify"`
	Carriers CarriersConfig `yaml:"carriers"`
	Geo      GeoConfig      `yaml:"geo"`
	Pulse    PulseConfig    `yaml:"shippulse"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	ShipmentFlaggedTopicName string `yaml:"shipment_flagged_topic_name"`
}

type ShopifyConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

type CarriersConfig struct {
	BlueDart   BlueDartConfig   `yaml:"bluedart"`
	Shiprocket ShiprocketConfig `yaml:"shiprocket"`
}

type BlueDartConfig struct {
	BaseURL       string `yaml:"base_url"`
	LicenseKey    string `yaml:"license_key"`
	LoginID       string `yaml:"login_id"`
	OriginPincode string `yaml:"origin_pincode"`
	TokenTTLHours int    `yaml:"token_ttl_hours"` // default 23
}

type ShiprocketConfig struct {
	BaseURL       string `yaml:"base_url"`
	Email         string `yaml:"email"`
	Password      string `yaml:"password"`
	PickupPincode string `yaml:"pickup_pincode"`
	TokenTTLHours int    `yaml:"token_ttl_hours"` // default 168 (7 days)
}

type GeoConfig struct {
	BaseURL string `yaml:"base_url"`
}

type PulseConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	SwaggerPath string `yaml:"swagger_path"`

	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	SweepBatchSize       int `yaml:"sweep_batch_size"`
	SweepConcurrency     int `yaml:"sweep_concurrency"`

	CODChunkSize         int `yaml:"cod_chunk_size"`
	CODChunkPauseSeconds int `yaml:"cod_chunk_pause_seconds"`
	CODWindowDays        int `yaml:"cod_window_days"`

	CarrierRateLimitPerMinute int `yaml:"carrier_rate_limit_per_minute"`

	EDDCacheTTLSeconds int `yaml:"edd_cache_ttl_seconds"`

	// Classifier knobs. Zero values fall back to the business defaults
	// (out-for +1h, invalid +24h, default +6h, stuck 48h,
	// SLA bluedart 96h / shiprocket 120h).
	RulesOutForDeliveryMinutes int      `yaml:"rules_out_for_delivery_minutes"`
	RulesInvalidHours          int      `yaml:"rules_invalid_hours"`
	RulesDefaultHours          int      `yaml:"rules_default_hours"`
	RulesNDRHour               int      `yaml:"rules_ndr_hour"`
	RulesStuckHours            int      `yaml:"rules_stuck_hours"`
	RulesSLABlueDartHours      int      `yaml:"rules_sla_bluedart_hours"`
	RulesSLAShiprocketHours    int      `yaml:"rules_sla_shiprocket_hours"`
	MetroCities                []string `yaml:"metro_cities"`
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

	config.applyEnvOverrides()

	return &config, nil
}

// Secrets can be kept out of the YAML file and supplied via env
// (a .env file is loaded by the binary before the config).
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SHOPIFY_WEBHOOK_SECRET"); v != "" {
		c.Shopify.WebhookSecret = v
	}
	if v := os.Getenv("BLUEDART_LICENSE_KEY"); v != "" {
		c.Carriers.BlueDart.LicenseKey = v
	}
	if v := os.Getenv("BLUEDART_LOGIN_ID"); v != "" {
		c.Carriers.BlueDart.LoginID = v
	}
	if v := os.Getenv("SHIPROCKET_EMAIL"); v != "" {
		c.Carriers.Shiprocket.Email = v
	}
	if v := os.Getenv("SHIPROCKET_PASSWORD"); v != "" {
		c.Carriers.Shiprocket.Password = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
}
