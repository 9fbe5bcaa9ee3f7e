// Package sql defines the connection config and contract implemented by
// each relational adapter under adapters/{postgres,mysql,mssql,sqlite}.
package sql

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/database"
	"gorm.io/gorm"
)

// Config is the connection configuration accepted by every adapter's New.
type Config struct {
	Driver database.Driver `env:"DB_DRIVER" env-default:"postgres"`

	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" env-default:"streamwork"`

	SSLMode     string `env:"DB_SSL_MODE" env-default:"disable"`
	SSLRootCert string `env:"DB_SSL_ROOT_CERT"`
	SSLCert     string `env:"DB_SSL_CERT"`
	SSLKey      string `env:"DB_SSL_KEY"`

	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
}

// SQL is the contract every relational adapter satisfies. It is the
// narrower, driver-facing counterpart of database.DB.
type SQL interface {
	Get(ctx context.Context) *gorm.DB
	GetShard(ctx context.Context, key string) (*gorm.DB, error)
	Close() error
}
