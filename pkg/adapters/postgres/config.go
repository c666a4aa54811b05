package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/anyset/pkg/adapter"
)

const (
	defaultHost = "localhost"
	defaultPort = 5432
)

// Params holds PostgreSQL-specific settings from adapter.Config.Params.
type Params struct {
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	ApplicationName  string        `mapstructure:"application_name"`
}

// parseParams decodes raw params. Durations may be given as "30s" strings.
func parseParams(raw map[string]any) (*Params, error) {
	p := &Params{ApplicationName: "anyset"}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid postgres params: %w", err)
	}
	if p.MaxOpenConns < 0 || p.MaxIdleConns < 0 {
		return nil, fmt.Errorf("invalid postgres params: connection counts must not be negative")
	}
	return p, nil
}

// connString renders cfg as a postgres:// URL. Options become query
// parameters, which pgx passes on as runtime parameters; sslmode defaults
// to disable.
func connString(cfg adapter.Config, p *Params) string {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}
	switch {
	case cfg.Username != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	case cfg.Username != "":
		u.User = url.User(cfg.Username)
	}

	q := url.Values{}
	q.Set("sslmode", "disable")
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	if cfg.Schema != "" {
		q.Set("search_path", cfg.Schema)
	}
	if p != nil {
		if p.ApplicationName != "" {
			q.Set("application_name", p.ApplicationName)
		}
		if p.StatementTimeout > 0 {
			q.Set("statement_timeout", strconv.FormatInt(p.StatementTimeout.Milliseconds(), 10))
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
