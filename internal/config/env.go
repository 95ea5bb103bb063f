package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type lookupFunc func(string) (string, bool)

// applyEnv overlays environment variables. Empty values are ignored.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	for name, set := range envBindings(cfg) {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := set(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
	}
	return nil
}

func envBindings(c *Config) map[string]func(string) error {
	return map[string]func(string) error{
		"PORT":         intVar(&c.Port),
		"LOG_LEVEL":    stringVar(&c.LogLevel),
		"LOG_FORMAT":   stringVar(&c.LogFormat),
		"DATABASE_URL": stringVar(&c.DatabaseURL),

		"REDIS_HOST":     stringVar(&c.Redis.Host),
		"REDIS_PORT":     intVar(&c.Redis.Port),
		"REDIS_PASSWORD": stringVar(&c.Redis.Password),
		"REDIS_DB":       intVar(&c.Redis.DB),
		"REDIS_PREFIX":   stringVar(&c.Redis.Prefix),

		"JWT_SECRET":            stringVar(&c.JWT.Secret),
		"JWT_ISSUER":            stringVar(&c.JWT.Issuer),
		"JWT_AUDIENCE":          stringVar(&c.JWT.Audience),
		"JWT_ACCESS_TTL":        durationVar(&c.JWT.AccessTTL),
		"JWT_REFRESH_TTL":       durationVar(&c.JWT.RefreshTTL),
		"JWT_RESET_TTL":         durationVar(&c.JWT.ResetTTL),
		"ROTATE_REFRESH_TOKENS": boolVar(&c.JWT.RotateRefresh),

		"RESET_PASSWORD_URL": stringVar(&c.Reset.URLTemplate),
		"EMAIL_FROM":         stringVar(&c.Reset.From),

		"MAX_LOGIN_ATTEMPTS":   intVar(&c.Security.MaxLoginAttempts),
		"LOGIN_COOLDOWN":       durationVar(&c.Security.LoginCooldown),
		"MAX_RESET_REQUESTS":   intVar(&c.Security.MaxResetRequests),
		"RESET_REQUEST_WINDOW": durationVar(&c.Security.ResetRequestWindow),

		"EMAIL_DRIVER":    stringVar(&c.Mail.Driver),
		"EMAIL_HOST":      stringVar(&c.Mail.SMTPHost),
		"EMAIL_PORT":      intVar(&c.Mail.SMTPPort),
		"EMAIL_USER":      stringVar(&c.Mail.SMTPUser),
		"EMAIL_PASSWORD":  stringVar(&c.Mail.SMTPPassword),
		"AMQP_URL":        stringVar(&c.Mail.AMQPURL),
		"AMQP_MAIL_QUEUE": stringVar(&c.Mail.AMQPQueue),

		"AUDIT_ENABLED":      boolVar(&c.Audit.Enabled),
		"NATS_URL":           stringVar(&c.Audit.NATSURL),
		"NATS_AUDIT_SUBJECT": stringVar(&c.Audit.NATSSubject),

		"CORS_ORIGINS":  listVar(&c.HTTP.CORSOrigins),
		"COOKIE_SECURE": boolVar(&c.HTTP.CookieSecure),

		"METRICS_ENABLED": boolVar(&c.Metrics.Enabled),

		"OTEL_EXPORTER_OTLP_ENDPOINT": stringVar(&c.OTLPEndpoint),
	}
}

func stringVar(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func intVar(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func boolVar(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func durationVar(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func listVar(dst *[]string) func(string) error {
	return func(v string) error {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
		return nil
	}
}
