package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parcelops/shippulse/config"
	"github.com/parcelops/shippulse/internal/integrations/carrier/bluedart"
	"github.com/parcelops/shippulse/internal/integrations/carrier/fake"
	"github.com/parcelops/shippulse/internal/integrations/carrier/shiprocket"
	"github.com/parcelops/shippulse/internal/models"
)

func TestNewCarrierClients_FallsBackToFakeWithoutCredentials(t *testing.T) {
	clients := newCarrierClients(&config.Config{})

	_, ok := clients.bluedart.(*fake.FakeClient)
	require.True(t, ok)
	_, ok = clients.shiprocket.(*fake.FakeClient)
	require.True(t, ok)
	require.Nil(t, clients.bluedartETA)
	require.Nil(t, clients.shiprocketETA)
}

func TestNewCarrierClients_RealClientsWithCredentials(t *testing.T) {
	cfg := &config.Config{
		Carriers: config.CarriersConfig{
			BlueDart: config.BlueDartConfig{
				BaseURL:       "https://apigateway.bluedart.com",
				LicenseKey:    "k",
				LoginID:       "l",
				OriginPincode: "110001",
			},
			Shiprocket: config.ShiprocketConfig{
				BaseURL:       "https://apiv2.shiprocket.in",
				Email:         "ops@example.com",
				Password:      "p",
				PickupPincode: "110001",
			},
		},
	}
	clients := newCarrierClients(cfg)

	_, ok := clients.bluedart.(*bluedart.Client)
	require.True(t, ok)
	_, ok = clients.shiprocket.(*shiprocket.Client)
	require.True(t, ok)
	require.NotNil(t, clients.bluedartETA)
	require.NotNil(t, clients.shiprocketETA)
}

func TestDefaultFactories_OptionalInfra(t *testing.T) {
	f := defaultFactories()

	empty := &config.Config{}
	require.Nil(t, f.newProducer(empty))
	require.Nil(t, f.newRateLimiter(empty))
	require.Nil(t, f.newCache(empty))

	wired := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newProducer(wired))
	require.NotNil(t, f.newRateLimiter(wired))
	require.NotNil(t, f.newCache(wired))
}

func TestSlaFromConfig(t *testing.T) {
	require.Nil(t, slaFromConfig(&config.Config{}))

	partial := &config.Config{}
	partial.Pulse.RulesSLABlueDartHours = 72
	require.Nil(t, slaFromConfig(partial))

	full := &config.Config{}
	full.Pulse.RulesSLABlueDartHours = 72
	full.Pulse.RulesSLAShiprocketHours = 96
	sla := slaFromConfig(full)
	require.Equal(t, 72*time.Hour, sla[models.CourierBlueDart])
	require.Equal(t, 96*time.Hour, sla[models.CourierShiprocket])
}
