package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/notify"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"golang.org/x/crypto/bcrypt"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	MailSMTP = "smtp"
	MailLog  = "log"
)

type Config struct {
	Env                  string        `env:"ENV"                   envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT"            envDefault:"json"`
	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	// ClientURL is the front end that serves /reset-password/{token}.
	ClientURL string `env:"CLIENT_URL" envDefault:"http://localhost:3000"`

	Issuer     string        `env:"ACCOUNTS_ISSUER" envDefault:"aussiebroadwan-accounts"`
	JWTSecret  string        `env:"JWT_SECRET,notEmpty"`
	TokenTTL   time.Duration `env:"TOKEN_TTL"       envDefault:"720h"`
	BcryptCost int           `env:"BCRYPT_COST"     envDefault:"10"`
	CodeTTL    time.Duration `env:"CODE_TTL"        envDefault:"30m"`
	ResetTTL   time.Duration `env:"RESET_TTL"       envDefault:"30m"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseFile   string `env:"DATABASE_FILE"   envDefault:"accounts.db"`
	DatabaseDSN    string `env:"DATABASE_DSN"`

	// MailDriver defaults to log in dev and test, smtp everywhere else.
	MailDriver string            `env:"MAIL_DRIVER"`
	SMTP       notify.SMTPConfig `envPrefix:"SMTP_"`

	RateLimits httpx.RateLimits `envPrefix:"RATELIMIT_"`
}

// LoadConfig reads the environment on top of the built-in defaults.
func LoadConfig() (Config, error) {
	cfg := Config{RateLimits: httpx.DefaultRateLimits()}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.MailDriver == "" {
		cfg.MailDriver = MailSMTP
		if cfg.mailToStdoutAllowed() {
			cfg.MailDriver = MailLog
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ClientURL, validation.Required, is.URL),
		validation.Field(&c.JWTSecret, validation.Required, validation.Length(jwtx.MinSecretLength, 0)),
		validation.Field(&c.BcryptCost, validation.Min(bcrypt.MinCost), validation.Max(bcrypt.MaxCost)),
		validation.Field(&c.TokenTTL, validation.Min(time.Minute)),
		validation.Field(&c.CodeTTL, validation.Min(time.Minute)),
		validation.Field(&c.ResetTTL, validation.Min(time.Minute)),
		validation.Field(&c.DatabaseDriver, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DatabaseDSN, validation.By(func(any) error {
			if c.DatabaseDriver == DriverPostgres && c.DatabaseDSN == "" {
				return errors.New("is required for the postgres driver")
			}
			return nil
		})),
		validation.Field(&c.MailDriver, validation.Required, validation.In(MailSMTP, MailLog), validation.By(func(any) error {
			if c.MailDriver == MailLog && !c.mailToStdoutAllowed() {
				return errors.New("log driver prints secrets and is only allowed when ENV is dev or test")
			}
			return nil
		})),
		validation.Field(&c.SMTP, validation.By(func(any) error {
			if c.MailDriver != MailSMTP {
				return nil
			}
			return validation.ValidateStruct(&c.SMTP,
				validation.Field(&c.SMTP.Host, validation.Required),
				validation.Field(&c.SMTP.From, validation.Required, is.Email),
			)
		})),
	)
}

// mailToStdoutAllowed reports whether the log mail driver may run. It writes
// verification codes and reset links in the clear.
func (c Config) mailToStdoutAllowed() bool {
	return c.Env == "dev" || c.Env == "test"
}
