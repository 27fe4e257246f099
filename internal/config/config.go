package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	MySQLDSN string

	RedisAddr string
	RedisDB   int
	RedisPass string

	JWTSecret          string
	JWTKeyID           string
	JWTPreviousSecrets map[string]string
	JWTIssuer          string

	BcryptCost  int
	HashWorkers int

	OTPTTL            time.Duration
	OTPResendCooldown time.Duration
	ResetTokenTTL     time.Duration
	ResetURLBase      string

	MailDriver string
	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	MailFrom   string

	AuthRateLimit float64

	LogLevel  string
	LogFormat string

	SwaggerHost string

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		ServerPort:   v.GetString("SERVER_PORT"),
		ReadTimeout:  v.GetDuration("HTTP_READ_TIMEOUT"),
		WriteTimeout: v.GetDuration("HTTP_WRITE_TIMEOUT"),

		MySQLDSN: v.GetString("MYSQL_DSN"),

		RedisAddr: v.GetString("REDIS_ADDR"),
		RedisDB:   v.GetInt("REDIS_DB"),
		RedisPass: v.GetString("REDIS_PASSWORD"),

		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTKeyID:           v.GetString("JWT_KEY_ID"),
		JWTPreviousSecrets: parseKeyring(v.GetString("JWT_PREVIOUS_SECRETS")),
		JWTIssuer:          v.GetString("JWT_ISSUER"),

		BcryptCost:  clampCost(v.GetInt("BCRYPT_COST")),
		HashWorkers: v.GetInt("HASH_WORKERS"),

		OTPTTL:            v.GetDuration("OTP_TTL"),
		OTPResendCooldown: v.GetDuration("OTP_RESEND_COOLDOWN"),
		ResetTokenTTL:     v.GetDuration("RESET_TOKEN_TTL"),
		ResetURLBase:      v.GetString("RESET_URL_BASE"),

		MailDriver: strings.ToLower(v.GetString("MAIL_DRIVER")),
		SMTPHost:   v.GetString("SMTP_HOST"),
		SMTPPort:   v.GetInt("SMTP_PORT"),
		SMTPUser:   v.GetString("SMTP_USER"),
		SMTPPass:   v.GetString("SMTP_PASS"),
		MailFrom:   v.GetString("MAIL_FROM"),

		AuthRateLimit: v.GetFloat64("AUTH_RATE_LIMIT"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		SwaggerHost: v.GetString("SWAGGER_HOST"),

		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		AdminName:     v.GetString("ADMIN_NAME"),
	}
}

// MinJWTSecretLength is the shortest accepted HS256 signing secret, in bytes.
const MinJWTSecretLength = 32

// ErrWeakJWTSecret is returned by Validate when the signing secret is unusable.
var ErrWeakJWTSecret = errors.New("config: JWT_SECRET is missing or too weak")

// Validate rejects configurations the server must not start with. JWT_SECRET
// has no default: a secret known from the source tree would let anyone mint tokens.
func (c *Config) Validate() error {
	secrets := map[string]string{"JWT_SECRET": c.JWTSecret}
	for kid, secret := range c.JWTPreviousSecrets {
		secrets["JWT_PREVIOUS_SECRETS["+kid+"]"] = secret
	}
	for name, secret := range secrets {
		if len(secret) < MinJWTSecretLength || secret == "change-me" {
			return fmt.Errorf("%w: %s must be at least %d bytes", ErrWeakJWTSecret, name, MinJWTSecretLength)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("HTTP_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("MYSQL_DSN", "user:password@tcp(localhost:3306)/noap?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_KEY_ID", "k1")
	v.SetDefault("JWT_ISSUER", "noap")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("HASH_WORKERS", runtime.GOMAXPROCS(0))
	v.SetDefault("OTP_TTL", 10*time.Minute)
	v.SetDefault("OTP_RESEND_COOLDOWN", time.Duration(0))
	v.SetDefault("RESET_TOKEN_TTL", time.Hour)
	v.SetDefault("RESET_URL_BASE", "http://localhost:3000/reset-password/")
	v.SetDefault("MAIL_DRIVER", "smtp")
	v.SetDefault("SMTP_HOST", "smtp-relay.brevo.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("AUTH_RATE_LIMIT", 20.0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ADMIN_NAME", "Administrator")
}

// clampCost keeps the bcrypt work factor inside the supported 8-12 window.
func clampCost(cost int) int {
	switch {
	case cost < 8:
		return 8
	case cost > 12:
		return 12
	default:
		return cost
	}
}

// parseKeyring reads "kid:secret,kid:secret" pairs of retired signing keys.
func parseKeyring(raw string) map[string]string {
	keys := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		kid, secret, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		kid, secret = strings.TrimSpace(kid), strings.TrimSpace(secret)
		if kid == "" || secret == "" {
			continue
		}
		keys[kid] = secret
	}
	return keys
}
