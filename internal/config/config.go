package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aaronromeo/sortpat/internal/imap/actions"
	"github.com/aaronromeo/sortpat/internal/rules"
	"github.com/aaronromeo/sortpat/internal/scan"
	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFolder         = "INBOX"
	DefaultWorkerPoolSize = 4
	DefaultPoolSize       = 2
	DefaultCommandTimeout = 30 * time.Second
	DefaultSchedule       = "0 0 0,6,12,18 * * *"
	DefaultListen         = ":8080"
)

// CronParser accepts an optional leading seconds field.
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds non-secret configuration loaded from YAML.
type Config struct {
	Folder               string        `yaml:"folder"`
	RescanAll            bool          `yaml:"rescan_all"`
	OnlySortRecent       bool          `yaml:"only_sort_recent"`
	MaxEmailsPerRun      int           `yaml:"max_emails_per_run"`
	AutoArchiveAfterSort bool          `yaml:"auto_archive_after_sort"`
	SortInBackground     bool          `yaml:"sort_in_background"`
	WorkerPoolSize       int           `yaml:"worker_pool_size"`
	PoolSize             int           `yaml:"pool_size"`
	CommandTimeout       time.Duration `yaml:"command_timeout"`
	LabelMode            string        `yaml:"label_mode"`
	ArchiveFlag          string        `yaml:"archive_flag"`
	CustomSortingRules   []rules.Rule  `yaml:"custom_sorting_rules"`
	NLP                  NLP           `yaml:"nlp"`
	Schedule             Schedule      `yaml:"schedule"`
	Server               Server        `yaml:"server"`
}

// NLP configures post-classification summarization and sentiment analysis.
type NLP struct {
	Enabled               bool     `yaml:"enabled"`
	RouteLabels           []string `yaml:"route_labels"`
	Endpoint              string   `yaml:"endpoint"`
	MaxEmailBodyLength    int      `yaml:"max_email_body_length"`
	MaxSummaryLength      int      `yaml:"max_summary_length"`
	SkipSummarization     bool     `yaml:"skip_summarization"`
	SkipSentimentAnalysis bool     `yaml:"skip_sentiment_analysis"`
	SentimentLabels       []string `yaml:"sentiment_labels"`
	QueueSize             int      `yaml:"queue_size"`
	Workers               int      `yaml:"workers"`
}

type Schedule struct {
	Cron string `yaml:"cron"`
}

type Server struct {
	Listen string `yaml:"listen"`
}

// IMAPEnv holds the IMAP connection details from environment variables.
type IMAPEnv struct {
	Host               string `env:"SORTPAT_IMAP_HOST,required,notEmpty"`
	Port               int    `env:"SORTPAT_IMAP_PORT" envDefault:"993"`
	User               string `env:"SORTPAT_IMAP_USER,required,notEmpty"`
	Pass               string `env:"SORTPAT_IMAP_PASS,required,notEmpty"`
	InsecureSkipVerify bool   `env:"SORTPAT_IMAP_INSECURE_SKIP_VERIFY" envDefault:"false"`
}

// Addr returns host:port.
func (e IMAPEnv) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// RuntimeEnv holds optional integrations configured through the environment.
type RuntimeEnv struct {
	WebhookURL    string `env:"SORTPAT_WEBHOOK_URL"`
	UptraceDSN    string `env:"UPTRACE_DSN"`
	LogExporter   string `env:"SORTPAT_LOG_EXPORTER" envDefault:"json"`
	TelemetryName string `env:"SORTPAT_SERVICE_NAME" envDefault:"sortpat"`
}

// Load reads configuration from a YAML file and fills in defaults. Unknown
// keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrapf(err, "parse %s", path)
	}

	return WithDefaults(cfg), nil
}

// WithDefaults returns cfg with every unset field given its default.
func WithDefaults(cfg Config) Config {
	if strings.TrimSpace(cfg.Folder) == "" {
		cfg.Folder = DefaultFolder
	}
	if cfg.MaxEmailsPerRun == 0 {
		cfg.MaxEmailsPerRun = scan.DefaultMaxPerRun
	}
	if cfg.WorkerPoolSize == 0 {
		cfg.WorkerPoolSize = DefaultWorkerPoolSize
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.LabelMode == "" {
		cfg.LabelMode = string(actions.LabelModeKeyword)
	}
	if cfg.ArchiveFlag == "" {
		cfg.ArchiveFlag = actions.DefaultArchiveFlag
	}
	if strings.TrimSpace(cfg.Schedule.Cron) == "" {
		cfg.Schedule.Cron = DefaultSchedule
	}
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = DefaultListen
	}
	return cfg
}

// Validate performs basic validation on non-secret config.
func Validate(cfg Config) error {
	if cfg.MaxEmailsPerRun < 0 {
		return errors.New("max_emails_per_run must not be negative")
	}
	if cfg.WorkerPoolSize < 0 {
		return errors.New("worker_pool_size must not be negative")
	}
	if cfg.PoolSize < 0 {
		return errors.New("pool_size must not be negative")
	}
	if cfg.CommandTimeout < 0 {
		return errors.New("command_timeout must not be negative")
	}
	switch actions.LabelMode(cfg.LabelMode) {
	case actions.LabelModeKeyword, actions.LabelModeFolder:
	default:
		return fmt.Errorf("label_mode %q must be %q or %q", cfg.LabelMode, actions.LabelModeKeyword, actions.LabelModeFolder)
	}
	if err := validateArchiveFlag(cfg.ArchiveFlag); err != nil {
		return err
	}
	if _, err := RuleSet(cfg); err != nil {
		return errors.Wrap(err, "custom_sorting_rules")
	}
	if _, err := CronParser.Parse(cfg.Schedule.Cron); err != nil {
		return errors.Wrapf(err, "schedule.cron %q", cfg.Schedule.Cron)
	}
	if cfg.NLP.MaxEmailBodyLength < 0 || cfg.NLP.MaxSummaryLength < 0 {
		return errors.New("nlp lengths must not be negative")
	}
	return nil
}

func validateArchiveFlag(flag string) error {
	// System flags such as \Archive or \Flagged are accepted as well as keywords.
	if strings.HasPrefix(flag, "\\") {
		return errors.Wrap(rules.ValidateLabel(strings.TrimPrefix(flag, "\\")), "archive_flag")
	}
	return errors.Wrap(rules.ValidateLabel(flag), "archive_flag")
}

// RuleSet returns the custom rules when configured, otherwise the defaults.
// Custom rules replace the defaults wholesale.
func RuleSet(cfg Config) (*rules.RuleSet, error) {
	if len(cfg.CustomSortingRules) == 0 {
		return rules.Default(), nil
	}
	return rules.New(cfg.CustomSortingRules)
}

// Policy returns the scan policy described by cfg.
func Policy(cfg Config) scan.Policy {
	return scan.Policy{
		RescanAll:            cfg.RescanAll,
		OnlyRecent:           cfg.OnlySortRecent,
		MaxPerRun:            cfg.MaxEmailsPerRun,
		AutoArchiveAfterSort: cfg.AutoArchiveAfterSort,
		BackgroundMode:       cfg.SortInBackground,
	}
}

// Labeling returns how labels are written to the server.
func Labeling(cfg Config) actions.Labeling {
	return actions.Labeling{
		Mode:        actions.LabelMode(cfg.LabelMode),
		ArchiveFlag: cfg.ArchiveFlag,
	}
}

// IMAPEnvFromEnv loads IMAP connection details and validates required entries.
func IMAPEnvFromEnv() (IMAPEnv, error) {
	var e IMAPEnv
	if err := env.Parse(&e); err != nil {
		return IMAPEnv{}, errors.Wrap(err, "missing or invalid IMAP environment")
	}
	return e, nil
}

// RuntimeEnvFromEnv loads the optional integration settings.
func RuntimeEnvFromEnv() (RuntimeEnv, error) {
	var e RuntimeEnv
	if err := env.Parse(&e); err != nil {
		return RuntimeEnv{}, err
	}
	return e, nil
}

// Summary returns a concise config summary for validation runs.
func Summary(cfg Config, rt RuntimeEnv) string {
	ruleSource := "default"
	ruleCount := len(rules.Default().Rules())
	if len(cfg.CustomSortingRules) > 0 {
		ruleSource = "custom"
		ruleCount = len(cfg.CustomSortingRules)
	}
	nlpStatus := "disabled"
	if cfg.NLP.Enabled {
		nlpStatus = "enabled"
	}
	return fmt.Sprintf(
		"Config summary\n"+
			"- folder: %s\n"+
			"- rules: %d (%s)\n"+
			"- scan: rescan_all=%t only_sort_recent=%t max_emails_per_run=%d\n"+
			"- auto archive: %t (flag %s)\n"+
			"- label mode: %s\n"+
			"- workers: %d, sessions: %d, command timeout: %s\n"+
			"- nlp: %s\n"+
			"- schedule: %s\n"+
			"- reporting webhook: %s",
		cfg.Folder,
		ruleCount, ruleSource,
		cfg.RescanAll, cfg.OnlySortRecent, cfg.MaxEmailsPerRun,
		cfg.AutoArchiveAfterSort, cfg.ArchiveFlag,
		cfg.LabelMode,
		cfg.WorkerPoolSize, cfg.PoolSize, cfg.CommandTimeout,
		nlpStatus,
		cfg.Schedule.Cron,
		enabledIf(rt.WebhookURL != ""),
	)
}

func enabledIf(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}
