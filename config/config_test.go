package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  shipment_flagged_topic_name: "shipment.flagged"
redis:
  host: "localhost"
  port: 6379
shopify:
  webhook_secret: "shhh"
carriers:
  bluedart:
    base_url: "https://apigateway.bluedart.com"
    origin_pincode: "400099"
    token_ttl_hours: 23
  shiprocket:
    base_url: "https://apiv2.shiprocket.in"
    pickup_pincode: "400099"
shippulse:
  http_addr: ":8080"
  sweep_batch_size: 30
  cod_chunk_size: 20
  metro_cities: ["mumbai", "delhi"]
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "shipment.flagged", cfg.Kafka.ShipmentFlaggedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, "shhh", cfg.Shopify.WebhookSecret)
	require.Equal(t, 23, cfg.Carriers.BlueDart.TokenTTLHours)
	require.Equal(t, ":8080", cfg.Pulse.HTTPAddr)
	require.Equal(t, 30, cfg.Pulse.SweepBatchSize)
	require.Equal(t, []string{"mumbai", "delhi"}, cfg.Pulse.MetroCities)
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
shopify:
  webhook_secret: "from-yaml"
`), 0o600))

	t.Setenv("SHOPIFY_WEBHOOK_SECRET", "from-env")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Shopify.WebhookSecret)
}
