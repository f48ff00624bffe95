package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4280"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Metadaten-Quellen für den Researcher-Harvest.
	OrcidBaseURL    string `envconfig:"ORCID_BASE_URL" default:"https://pub.orcid.org/v3.0"`
	CrossrefBaseURL string `envconfig:"CROSSREF_BASE_URL" default:"https://api.crossref.org"`
	CrossrefMailto  string `envconfig:"CROSSREF_MAILTO"`
	CrossrefRows    int    `envconfig:"CROSSREF_ROWS" default:"200"`
	EnabledSources  string `envconfig:"ENABLED_SOURCES" default:"orcid,crossref"`

	// Lock-Timeouts: der Harvest-Timeout muss die gesamte Pipeline abdecken,
	// nach Ablauf darf ein neuer Versuch zugelassen werden.
	HarvestTimeout   time.Duration `envconfig:"HARVEST_TIMEOUT" default:"15m"`
	ResolveTimeout   time.Duration `envconfig:"RESOLVE_TIMEOUT" default:"1m"`
	StatsLockTimeout time.Duration `envconfig:"STATS_LOCK_TIMEOUT" default:"3m"`

	StatsCronSchedule   string `envconfig:"STATS_CRON_SCHEDULE" default:"0 * * * *"`
	CleanupCronSchedule string `envconfig:"CLEANUP_CRON_SCHEDULE" default:"30 * * * *"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
