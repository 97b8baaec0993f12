package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

type ServerConfig struct {
	Port string `envconfig:"CRM_SERVER_PORT" default:"8080"`
}

type DatabaseConfig struct {
	URL string `envconfig:"CRM_DATABASE_URL" required:"true"`
}

type SchedulerConfig struct {
	Interval     time.Duration `envconfig:"CRM_SCHEDULER_INTERVAL" default:"60s"`
	RunOnStart   bool          `envconfig:"CRM_SCHEDULER_RUN_ON_START" default:"false"`
	MisfireGrace time.Duration `envconfig:"CRM_SCHEDULER_MISFIRE_GRACE" default:"30s"`
}

type SendGridConfig struct {
	APIKey      string        `envconfig:"CRM_SENDGRID_API_KEY"`
	FromEmail   string        `envconfig:"CRM_SENDGRID_FROM_EMAIL" default:"noreply@realtoros.io"`
	FromName    string        `envconfig:"CRM_SENDGRID_FROM_NAME" default:"RealtorOS"`
	SendTimeout time.Duration `envconfig:"CRM_SENDGRID_SEND_TIMEOUT" default:"15s"`
}

type WebhookConfig struct {
	// PublicKey is the provider's ECDSA public key, base64-encoded DER.
	PublicKey string `envconfig:"CRM_WEBHOOK_PUBLIC_KEY"`
	// VerifySignature may be disabled only outside production.
	VerifySignature bool          `envconfig:"CRM_WEBHOOK_VERIFY_SIGNATURE" default:"true"`
	Tolerance       time.Duration `envconfig:"CRM_WEBHOOK_TOLERANCE" default:"600s"`
}

type OpenAIConfig struct {
	APIKey  string        `envconfig:"CRM_OPENAI_API_KEY"`
	Model   string        `envconfig:"CRM_OPENAI_MODEL" default:"gpt-4o-mini"`
	Timeout time.Duration `envconfig:"CRM_OPENAI_TIMEOUT" default:"20s"`
}

type QueueConfig struct {
	// AMQP URL for the lifecycle event feed. Publishing is disabled when
	// empty.
	URL       string `envconfig:"CRM_AMQP_URL"`
	QueueName string `envconfig:"CRM_AMQP_QUEUE" default:"crm_events"`
}

type Configuration struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	SendGrid  SendGridConfig
	Webhook   WebhookConfig
	OpenAI    OpenAIConfig
	Queue     QueueConfig
}

// Load reads an optional .env file and then the environment.
func Load() (*Configuration, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, relying on OS environment variables")
	}
	var cfg Configuration
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
