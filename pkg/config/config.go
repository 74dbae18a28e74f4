package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	OTP           OTPConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Documents     DocumentsConfig
	Sendgrid      SendgridConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLINICORE_APP_ENV" required:"true"`
	Port         string `envconfig:"CLINICORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLINICORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLINICORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CLINICORE_DB_DSN"`
	Driver string `envconfig:"CLINICORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CLINICORE_DB_HOST"`
	LegacyPort     int    `envconfig:"CLINICORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLINICORE_DB_USER"`
	LegacyPassword string `envconfig:"CLINICORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLINICORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLINICORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLINICORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLINICORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLINICORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLINICORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLINICORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLINICORE_REDIS_ADDR"`
	Password     string        `envconfig:"CLINICORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLINICORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLINICORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLINICORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLINICORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLINICORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLINICORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CLINICORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CLINICORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CLINICORE_JWT_EXPIRATION_MINUTES" required:"true"`
	SessionTTLMinutes int    `envconfig:"CLINICORE_SESSION_TTL_MINUTES" default:"43200"`
}

// SessionTTL returns the server-side session TTL configured in minutes.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CLINICORE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CLINICORE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CLINICORE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CLINICORE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CLINICORE_ARGON_KEY_LEN" default:"32"`
}

type OTPConfig struct {
	TTL            time.Duration `envconfig:"CLINICORE_OTP_TTL" default:"10m"`
	ResendCooldown time.Duration `envconfig:"CLINICORE_OTP_RESEND_COOLDOWN" default:"60s"`
	MaxAttempts    int           `envconfig:"CLINICORE_OTP_MAX_ATTEMPTS" default:"5"`
	ChangeTokenTTL time.Duration `envconfig:"CLINICORE_PASSWORD_CHANGE_TOKEN_TTL" default:"15m"`
	ResetCodeTTL   time.Duration `envconfig:"CLINICORE_PASSWORD_RESET_CODE_TTL" default:"30m"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"CLINICORE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"CLINICORE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"CLINICORE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	ForgotWindow    time.Duration `envconfig:"CLINICORE_AUTH_RATE_LIMIT_FORGOT_WINDOW" default:"5m"`
	ForgotLimit     int           `envconfig:"CLINICORE_AUTH_RATE_LIMIT_FORGOT_EMAIL_LIMIT" default:"3"`
	ForgotIPLimit   int           `envconfig:"CLINICORE_AUTH_RATE_LIMIT_FORGOT_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CLINICORE_AUTO_MIGRATE" default:"false"`
	// OTPDryRun logs one-time codes instead of mailing them. Dev only.
	OTPDryRun bool `envconfig:"CLINICORE_OTP_DRY_RUN" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CLINICORE_GCP_PROJECT_ID"`
	CredentialsFile string `envconfig:"CLINICORE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"CLINICORE_GCS_BUCKET_NAME"`
	UploadURLExpiry   time.Duration `envconfig:"CLINICORE_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"CLINICORE_GCS_DOWNLOAD_URL_EXPIRY" default:"15m"`
}

type DocumentsConfig struct {
	MaxUploadMB int `envconfig:"CLINICORE_DOCUMENTS_MAX_UPLOAD_MB" default:"25"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"CLINICORE_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"CLINICORE_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"CLINICORE_SENDGRID_FROM_NAME" default:"Clinicore"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
