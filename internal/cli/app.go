package cli

import (
	"context"
	"crypto/tls"
	"log/slog"
	"os"
	"strings"

	"github.com/aaronromeo/sortpat/internal/announcer"
	"github.com/aaronromeo/sortpat/internal/config"
	"github.com/aaronromeo/sortpat/internal/imap"
	"github.com/aaronromeo/sortpat/internal/imap/sessionmanager"
	"github.com/aaronromeo/sortpat/internal/nlp"
	"github.com/aaronromeo/sortpat/internal/run"
	"github.com/aaronromeo/sortpat/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	configEnvVar   = "SORTPAT_CONFIG"
	defaultEnvFile = ".env"
)

// app is everything a command needs to run classification cycles.
type app struct {
	cfg         config.Config
	runtime     config.RuntimeEnv
	logger      *slog.Logger
	pool        *imap.Pool
	coordinator *run.Coordinator
	shutdown    func(context.Context) error
}

func newApp(cmd *cobra.Command, dryRun bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	imapEnv, err := config.IMAPEnvFromEnv()
	if err != nil {
		return nil, err
	}
	runtimeEnv, err := config.RuntimeEnvFromEnv()
	if err != nil {
		return nil, err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}

	telemetryCfg := telemetry.Config{
		ServiceName: runtimeEnv.TelemetryName,
		DSN:         runtimeEnv.UptraceDSN,
		LogExporter: runtimeEnv.LogExporter,
	}
	shutdown, err := telemetry.Setup(commandContext(cmd), telemetryCfg)
	if err != nil {
		return nil, err
	}
	logger := telemetry.NewLogger(cmd.ErrOrStderr(), telemetryCfg, verbose)
	metrics, err := telemetry.NewRunMetrics(nil)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}

	ruleSet, err := config.RuleSet(cfg)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}

	labeling := config.Labeling(cfg)
	sessionOpts := []sessionmanager.Option{
		sessionmanager.WithAddr(imapEnv.Addr()),
		sessionmanager.WithCreds(imapEnv.User, imapEnv.Pass),
		sessionmanager.WithCommandTimeout(cfg.CommandTimeout),
	}
	if imapEnv.InsecureSkipVerify {
		sessionOpts = append(sessionOpts, sessionmanager.WithTLSConfig(&tls.Config{
			ServerName:         imapEnv.Host,
			InsecureSkipVerify: true, //nolint:gosec
		}))
	}
	pool := imap.NewPool(cfg.PoolSize, func() imap.Session {
		return imap.New(labeling, sessionOpts...)
	}, logger)

	coordinator := run.New(run.Deps{
		Sessions:  pool,
		Rules:     ruleSet,
		Policy:    config.Policy(cfg),
		Folder:    cfg.Folder,
		Workers:   cfg.WorkerPoolSize,
		DryRun:    dryRun,
		NLP:       nlpDeps(cfg.NLP),
		Announcer: announcer.New(announcer.WithWebhookURL(runtimeEnv.WebhookURL)),
		Metrics:   metrics,
		Log:       logger,
	})

	return &app{
		cfg:         cfg,
		runtime:     runtimeEnv,
		logger:      logger,
		pool:        pool,
		coordinator: coordinator,
		shutdown:    shutdown,
	}, nil
}

func (a *app) Close() error {
	poolErr := a.pool.Close()
	otelErr := a.shutdown(context.Background())
	if poolErr != nil {
		return poolErr
	}
	return otelErr
}

func nlpDeps(cfg config.NLP) *run.NLP {
	if !cfg.Enabled {
		return nil
	}
	var analyzer nlp.Analyzer = nlp.LexiconAnalyzer{}
	if strings.TrimSpace(cfg.Endpoint) != "" {
		analyzer = nlp.NewHTTPAnalyzer(cfg.Endpoint)
	}
	return &run.NLP{
		Analyzer:    analyzer,
		RouteLabels: cfg.RouteLabels,
		Options: nlp.Options{
			MaxBodyLength:         cfg.MaxEmailBodyLength,
			MaxSummaryLength:      cfg.MaxSummaryLength,
			SkipSummarization:     cfg.SkipSummarization,
			SkipSentimentAnalysis: cfg.SkipSentimentAnalysis,
			SentimentLabels:       cfg.SentimentLabels,
			QueueSize:             cfg.QueueSize,
			Workers:               cfg.Workers,
		},
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfgPath, err := resolveConfigPath(cmd)
	if err != nil {
		return config.Config{}, err
	}
	if err := loadEnvFile(); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func resolveConfigPath(cmd *cobra.Command) (string, error) {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfgPath) == "" {
		cfgPath = os.Getenv(configEnvVar)
	}
	if strings.TrimSpace(cfgPath) == "" {
		return "", errors.New("config path is required via --config or SORTPAT_CONFIG")
	}
	return cfgPath, nil
}

func loadEnvFile() error {
	if _, err := os.Stat(defaultEnvFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(defaultEnvFile)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
