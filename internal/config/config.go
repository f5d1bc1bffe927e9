package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const devSignatureSecret = "csx-dev-certificate-secret"

// Config holds application configuration (env + Viper).
type Config struct {
	Env         string
	Port        string
	LogLevel    string
	DatabaseURL string
	RedisURL    string
	AutoMigrate bool

	JWTSecret         string
	LedgerLockTimeout time.Duration
	NotifyChannel     string

	CertSignatureSecret string
	CertificatesDir     string
	CertificatesBucket  string
	BaseURL             string // public origin printed in verification links
	MLServiceURL        string

	SupabaseURL       string
	SupabaseSecretKey string // must be service_role key (Dashboard → API), not anon key

	CORSOriginSuffix string
	DevPassword      string
	HealthAdminKey   string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("AUTO_MIGRATE", true)
	viper.SetDefault("LEDGER_LOCK_TIMEOUT", "5s")
	viper.SetDefault("NOTIFY_CHANNEL", "csx:updates")
	viper.SetDefault("CERTIFICATES_DIR", "certificates")
	viper.SetDefault("CERTIFICATES_BUCKET", "certificates")
	viper.SetDefault("BASE_URL", "http://localhost:3000")
	viper.SetDefault("ML_SERVICE_URL", "http://localhost:8000")

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	lockTimeout := viper.GetDuration("LEDGER_LOCK_TIMEOUT")
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}

	secret := viper.GetString("CERT_SIGNATURE_SECRET")
	if secret == "" {
		log.Warn().Msg("CERT_SIGNATURE_SECRET is not set, using the development default")
		secret = devSignatureSecret
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		AutoMigrate:         viper.GetBool("AUTO_MIGRATE"),
		JWTSecret:           viper.GetString("JWT_SECRET"),
		LedgerLockTimeout:   lockTimeout,
		NotifyChannel:       viper.GetString("NOTIFY_CHANNEL"),
		CertSignatureSecret: secret,
		CertificatesDir:     viper.GetString("CERTIFICATES_DIR"),
		CertificatesBucket:  viper.GetString("CERTIFICATES_BUCKET"),
		BaseURL:             strings.TrimRight(strings.TrimSpace(viper.GetString("BASE_URL")), "/"),
		MLServiceURL:        viper.GetString("ML_SERVICE_URL"),
		SupabaseURL:         viper.GetString("SUPABASE_URL"),
		SupabaseSecretKey:   viper.GetString("SUPABASE_SECRET_KEY"),
		CORSOriginSuffix:    viper.GetString("CORS_ORIGIN_SUFFIX"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
	}, nil
}
