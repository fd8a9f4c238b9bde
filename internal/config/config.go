package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Webhook  WebhookConfig  `mapstructure:"webhook" validate:"required"`
	RunPod   RunPodConfig   `mapstructure:"runpod" validate:"required"`
	Workflow WorkflowConfig `mapstructure:"workflow" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper" validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// WebhookConfig controls the callback URLs handed to the external job
// service and the lifetime of correlation records.
type WebhookConfig struct {
	// BaseURL is the public base under which the webhook route is reachable,
	// e.g. https://api.example.com/webhook/. The callback token is joined
	// onto it when a job is submitted.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// RecordTTL bounds how long a correlation record outlives its job.
	// It must exceed any realistic job runtime by a wide margin so slow or
	// retried webhooks still find a live record. Defaults to 168h (7 days).
	RecordTTL time.Duration `mapstructure:"record_ttl" validate:"required,min=1h"`
}

// RunPodConfig contains settings for the external job service client.
type RunPodConfig struct {
	// APIKeyFile is the path the cached credential provider reads the
	// bearer key from, once per process lifetime.
	APIKeyFile string `mapstructure:"api_key_file" validate:"required"`

	// SubmitTimeout bounds a single job-submission request.
	SubmitTimeout time.Duration `mapstructure:"submit_timeout" validate:"required,min=1s"`
}

// WorkflowConfig contains settings for the workflow engine client.
type WorkflowConfig struct {
	// BaseURL is the engine's callback API, exposing the resume-with-success
	// and resume-with-failure operations.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// ResumeTimeout bounds a single resume call.
	ResumeTimeout time.Duration `mapstructure:"resume_timeout" validate:"required,min=1s"`
}

// AuthConfig contains the authentication settings for the submit API.
type AuthConfig struct {
	// ServiceTokenSecret is the HMAC secret shared with the workflow engine
	// for the bearer tokens it presents on POST /api/jobs.
	ServiceTokenSecret string `mapstructure:"service_token_secret" validate:"required,min=32"`
}

// SweeperConfig controls the background expiry/reconciliation sweep.
type SweeperConfig struct {
	// Schedule is a standard 5-field cron expression.
	Schedule string `mapstructure:"schedule" validate:"required"`

	// OrphanReportLimit caps how many expired-but-PENDING records a single
	// sweep logs before deleting expired rows.
	OrphanReportLimit int `mapstructure:"orphan_report_limit" validate:"required,gt=0"`
}
