package database

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/supergnaw/nestbox/query/sqlgen"
)

// Config holds database connection configuration.
type Config struct {
	// Provider is mysql, postgres or sqlite.
	Provider string
	// DSN is passed to the driver as is. When empty it is built from the
	// host fields below, or for sqlite from Database.
	DSN string

	Host     string
	Port     int
	User     string
	Password string
	// Database scopes catalog lookups and names the database in a built DSN.
	Database string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConnectTimeout applies when Config.ConnectTimeout is zero.
const DefaultConnectTimeout = 10 * time.Second

// DataSourceName returns the DSN handed to the driver.
func (c Config) DataSourceName() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}

	provider, ok := sqlgen.NormalizeProvider(c.Provider)
	if !ok {
		return "", fmt.Errorf("unsupported provider: %s", c.Provider)
	}

	switch provider {
	case sqlgen.MySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = c.hostPort(3306)
		cfg.DBName = c.Database
		cfg.ParseTime = true
		cfg.Timeout = c.connectTimeout()
		return cfg.FormatDSN(), nil

	case sqlgen.Postgres:
		u := url.URL{
			Scheme: "postgres",
			Host:   c.hostPort(5432),
			Path:   "/" + c.Database,
		}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Password)
		}
		q := url.Values{}
		q.Set("sslmode", "disable")
		q.Set("connect_timeout", strconv.Itoa(int(c.connectTimeout().Seconds())))
		u.RawQuery = q.Encode()
		return u.String(), nil

	default:
		if c.Database == "" {
			return ":memory:", nil
		}
		return c.Database, nil
	}
}

func (c Config) hostPort(defaultPort int) string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return DefaultConnectTimeout
}
