package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/parcelops/shippulse/config"
	"github.com/parcelops/shippulse/internal/api/httpapi"
	"github.com/parcelops/shippulse/internal/auth/credentials"
	"github.com/parcelops/shippulse/internal/broker/kafka"
	"github.com/parcelops/shippulse/internal/cache"
	"github.com/parcelops/shippulse/internal/cache/rediscache"
	"github.com/parcelops/shippulse/internal/integrations/carrier"
	"github.com/parcelops/shippulse/internal/integrations/carrier/bluedart"
	"github.com/parcelops/shippulse/internal/integrations/carrier/fake"
	"github.com/parcelops/shippulse/internal/integrations/carrier/shiprocket"
	"github.com/parcelops/shippulse/internal/integrations/geo"
	"github.com/parcelops/shippulse/internal/models"
	"github.com/parcelops/shippulse/internal/services/edd"
	"github.com/parcelops/shippulse/internal/services/ingest"
	"github.com/parcelops/shippulse/internal/services/opsrules"
	"github.com/parcelops/shippulse/internal/services/sweep"
	"github.com/parcelops/shippulse/internal/services/tracking"
	"github.com/parcelops/shippulse/internal/storage/pgship"
)

type carrierClients struct {
	bluedart   carrier.Client
	shiprocket carrier.Client

	// EDD quote sources, nil when the carrier has no credentials.
	bluedartETA   edd.ETASource
	shiprocketETA edd.ETASource
}

type factories struct {
	newStorage     func(cfg *config.Config) (*pgship.Storage, error)
	newProducer    func(cfg *config.Config) tracking.Producer
	newRateLimiter func(cfg *config.Config) sweep.RateLimiter
	newCache       func(cfg *config.Config) cache.BytesCache
	newCarriers    func(cfg *config.Config) carrierClients
	newGeo         func(cfg *config.Config) edd.GeoLookup
}

func defaultFactories() factories {
	return factories{
		newStorage: func(cfg *config.Config) (*pgship.Storage, error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			return pgship.New(connString)
		},
		newProducer: func(cfg *config.Config) tracking.Producer {
			if cfg.Kafka.Host == "" {
				return nil
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) sweep.RateLimiter {
			if cfg.Redis.Host == "" {
				return nil
			}
			return rediscache.NewRateLimiter(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			if cfg.Redis.Host == "" {
				return nil
			}
			return rediscache.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		},
		newCarriers: newCarrierClients,
		newGeo: func(cfg *config.Config) edd.GeoLookup {
			return geo.New(cfg.Geo.BaseURL)
		},
	}
}

// newCarrierClients wires each adapter behind a cached token provider.
// A carrier without credentials falls back to the local fake so the
// rest of the pipeline stays exercisable in dev.
func newCarrierClients(cfg *config.Config) carrierClients {
	var out carrierClients

	if bd := cfg.Carriers.BlueDart; bd.LicenseKey != "" && bd.LoginID != "" {
		ttl := time.Duration(bd.TokenTTLHours) * time.Hour
		if ttl <= 0 {
			ttl = 23 * time.Hour
		}
		tokens := credentials.New(ttl, bluedart.NewLoginFetcher(bd.BaseURL, bd.LicenseKey, bd.LoginID))
		client := bluedart.New(bd.BaseURL, tokens)
		out.bluedart = client
		origin := bd.OriginPincode
		out.bluedartETA = edd.ETAFunc(func(ctx context.Context, pincode string) (time.Time, error) {
			return client.EstimateDelivery(ctx, origin, pincode)
		})
	} else {
		slog.Warn("bluedart credentials missing, using fake carrier")
		out.bluedart = fake.New(models.CourierBlueDart)
	}

	if sr := cfg.Carriers.Shiprocket; sr.Email != "" && sr.Password != "" {
		ttl := time.Duration(sr.TokenTTLHours) * time.Hour
		if ttl <= 0 {
			ttl = 7 * 24 * time.Hour
		}
		tokens := credentials.New(ttl, shiprocket.NewLoginFetcher(sr.BaseURL, sr.Email, sr.Password))
		client := shiprocket.New(sr.BaseURL, tokens)
		out.shiprocket = client
		pickup := sr.PickupPincode
		out.shiprocketETA = edd.ETAFunc(func(ctx context.Context, pincode string) (time.Time, error) {
			return client.EstimateDelivery(ctx, pickup, pincode)
		})
	} else {
		slog.Warn("shiprocket credentials missing, using fake carrier")
		out.shiprocket = fake.New(models.CourierShiprocket)
	}

	return out
}

func RunShipPulse(ctx context.Context, cfg *config.Config, f factories) error {
	topic := cfg.Kafka.ShipmentFlaggedTopicName
	if topic == "" {
		topic = "shipment.flagged"
	}

	st, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)
	bytesCache := f.newCache(cfg)
	carriers := f.newCarriers(cfg)

	rules := opsrules.New(opsrules.Config{
		OutForDeliveryDelay: time.Duration(cfg.Pulse.RulesOutForDeliveryMinutes) * time.Minute,
		InvalidDelay:        time.Duration(cfg.Pulse.RulesInvalidHours) * time.Hour,
		DefaultDelay:        time.Duration(cfg.Pulse.RulesDefaultHours) * time.Hour,
		NDRHour:             cfg.Pulse.RulesNDRHour,
		StuckAfter:          time.Duration(cfg.Pulse.RulesStuckHours) * time.Hour,
		SLA:                 slaFromConfig(cfg),
	})

	trackingSvc := tracking.New(st, rules, producer, topic)

	sweeper := sweep.New(st, trackingSvc, carriers.bluedart, carriers.shiprocket, rl).
		WithSettings(
			time.Duration(cfg.Pulse.SweepIntervalSeconds)*time.Second,
			cfg.Pulse.SweepBatchSize,
			cfg.Pulse.SweepConcurrency,
			cfg.Pulse.CODChunkSize,
			time.Duration(cfg.Pulse.CODChunkPauseSeconds)*time.Second,
			time.Duration(cfg.Pulse.CODWindowDays)*24*time.Hour,
			int64(cfg.Pulse.CarrierRateLimitPerMinute),
		)

	eddTTL := time.Duration(cfg.Pulse.EDDCacheTTLSeconds) * time.Second
	if eddTTL <= 0 {
		eddTTL = 6 * time.Hour
	}
	metros := cfg.Pulse.MetroCities
	if len(metros) == 0 {
		metros = edd.DefaultMetros()
	}
	eddSvc := edd.New(carriers.bluedartETA, carriers.shiprocketETA, f.newGeo(cfg), bytesCache, eddTTL, metros)

	ingestSvc := ingest.New(st, ingest.NewHMACVerifier(cfg.Shopify.WebhookSecret))

	handler := httpapi.NewHandler(eddSvc, trackingSvc, sweeper, ingestSvc, st)
	router := httpapi.NewRouter(handler, cfg.Pulse.SwaggerPath)

	httpAddr := cfg.Pulse.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	lis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: router}
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http server listening", "addr", lis.Addr().String())
		errCh <- srv.Serve(lis)
	}()
	go func() {
		errCh <- sweeper.Run(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return ctx.Err()
}

func slaFromConfig(cfg *config.Config) map[string]time.Duration {
	sla := map[string]time.Duration{}
	if h := cfg.Pulse.RulesSLABlueDartHours; h > 0 {
		sla[models.CourierBlueDart] = time.Duration(h) * time.Hour
	}
	if h := cfg.Pulse.RulesSLAShiprocketHours; h > 0 {
		sla[models.CourierShiprocket] = time.Duration(h) * time.Hour
	}
	if len(sla) < 2 {
		return nil // partial overrides fall back to the defaults as a set
	}
	return sla
}
