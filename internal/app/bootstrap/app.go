package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/drmente/intake-api/internal/api/router"
	appconfig "github.com/drmente/intake-api/internal/config"
	"github.com/drmente/intake-api/internal/dedupe"
	"github.com/drmente/intake-api/internal/http/handlers"
	httpmiddleware "github.com/drmente/intake-api/internal/http/middleware"
	"github.com/drmente/intake-api/internal/memed"
	"github.com/drmente/intake-api/internal/notify"
	"github.com/drmente/intake-api/internal/observability/metrics"
	"github.com/drmente/intake-api/internal/reconcile"
	"github.com/drmente/intake-api/pkg/logging"
)

// App is the wired service shared by cmd/api and cmd/lambda.
type App struct {
	Handler  http.Handler
	Metrics  *metrics.IntakeMetrics
	Registry *prometheus.Registry

	redis       *redis.Client
	rateLimiter *httpmiddleware.RateLimiter
}

// Close releases background resources.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Close()
	}
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

// Build wires the service from cfg. A missing MEMED_TOKEN is not fatal: the
// routes stay up and answer with a configuration error, as the forms expect.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewIntakeMetrics(registry)

	app := &App{Metrics: m, Registry: registry}

	notifier, err := BuildNotifier(ctx, cfg, logger, m)
	if err != nil {
		return nil, err
	}

	client, err := BuildMemedClient(cfg, logger, m)
	if err != nil {
		return nil, err
	}

	var guard dedupe.Guard
	if cfg.DedupeEnabled {
		app.redis = BuildRedisClient(ctx, cfg, logger, true)
		if app.redis == nil {
			logger.Warn("dedupe enabled but redis unavailable; duplicate deliveries will be processed")
		} else {
			guard = dedupe.NewStore(app.redis, cfg.DedupeTTL)
			logger.Info("submission dedupe enabled", "ttl", cfg.DedupeTTL.String())
		}
	}

	var (
		creator    handlers.PatientCreator
		searcher   handlers.PatientSearcher
		reconciler handlers.Reconciler
	)
	if client != nil {
		policy, err := reconcile.ParsePolicy(cfg.MatchPolicy)
		if err != nil {
			return nil, err
		}
		workflow, err := reconcile.New(client, notifier, reconcile.Config{
			Policy:          policy,
			ResponseBaseURL: cfg.FormShareResponseBaseURL,
			Logger:          logger,
			Observer:        m,
		})
		if err != nil {
			return nil, err
		}
		creator, searcher, reconciler = client, client, workflow
		logger.Info("memed client configured", "base_url", cfg.MemedBaseURL, "policy", string(policy))
	} else {
		logger.Warn("MEMED_TOKEN not set; patient routes will answer 500")
	}

	if cfg.RateLimitRPS > 0 {
		app.rateLimiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	app.Handler = router.New(&router.Config{
		Logger:             logger,
		CreatePatient:      handlers.NewCreatePatientHandler(creator, logger),
		SearchPatient:      handlers.NewSearchPatientHandler(searcher, logger),
		FormShareWebhook:   handlers.NewFormShareWebhookHandler(reconciler, guard, m, logger),
		APIToken:           cfg.AuthAPIToken,
		RateLimiter:        app.rateLimiter,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	return app, nil
}

// BuildMemedClient returns nil without error when MEMED_TOKEN is unset.
func BuildMemedClient(cfg *appconfig.Config, logger *logging.Logger, observer memed.Observer) (*memed.Client, error) {
	if strings.TrimSpace(cfg.MemedToken) == "" {
		return nil, nil
	}
	client, err := memed.New(memed.Config{
		BaseURL:  cfg.MemedBaseURL,
		Token:    cfg.MemedToken,
		Timeout:  cfg.MemedTimeout,
		Logger:   logger,
		Observer: observer,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: memed client: %w", err)
	}
	return client, nil
}

// BuildNotifier assembles the operator notification fan-out. Sinks that are
// not configured are skipped, so the result may deliver nowhere.
func BuildNotifier(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, observer notify.Observer) (*notify.BestEffort, error) {
	var sinks []notify.Notifier
	if ntfy := notify.NewNtfyNotifier(cfg.NtfyURL, &http.Client{Timeout: 10 * time.Second}); ntfy != nil {
		sinks = append(sinks, notify.Named("ntfy", ntfy))
	}

	sender, err := buildEmailSender(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if sender != nil {
		if email := notify.NewEmailNotifier(sender, cfg.NotifyEmailTo, ""); email != nil {
			sinks = append(sinks, notify.Named("email", email))
		}
	}

	if len(sinks) == 0 {
		logger.Warn("no notification sinks configured")
	}
	return notify.NewBestEffort(logger, observer, sinks...), nil
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.NotifyEmailProvider)) {
	case "":
		return nil, nil
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.NotifyEmailFrom,
			FromName:  cfg.NotifyEmailFromName,
		}, logger)
		if sender == nil {
			return nil, errors.New("bootstrap: SENDGRID_API_KEY required for sendgrid notifications")
		}
		return sender, nil
	case "ses":
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
			if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		return notify.NewSESSender(client, notify.SESConfig{
			FromEmail:        cfg.NotifyEmailFrom,
			FromName:         cfg.NotifyEmailFromName,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.NotifyEmailProvider)
	}
}
