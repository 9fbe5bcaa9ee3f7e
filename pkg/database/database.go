// Package database provides the relational connection abstraction shared by
// every durable-store adapter (pkg/workqueue, pkg/eventstore): a thin wrapper
// over *gorm.DB plus the driver-specific TLS/DSN plumbing each adapter needs.
package database

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/chris-alexander-pop/streamwork/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Driver identifies the relational engine backing a connection.
type Driver string

const (
	DriverPostgres  Driver = "postgres"
	DriverMySQL     Driver = "mysql"
	DriverSQLServer Driver = "sqlserver"
	DriverSQLite    Driver = "sqlite"
)

// DB is the connection surface every adapter in pkg/database/sql/adapters
// exposes. GetShard exists for future horizontal partitioning of the durable
// store by instance/tenant; single-node adapters return the primary
// connection regardless of key.
type DB interface {
	Get(ctx context.Context) *gorm.DB
	GetShard(ctx context.Context, key string) (*gorm.DB, error)
	Close() error
}

// NewGORMLogger returns GORM's default logger at Warn level. The postgres
// and mysql adapters use it (mysql raises it to Info with .LogMode); the
// mssql and sqlite adapters configure their own Info-level GORM logger.
func NewGORMLogger() logger.Interface {
	return logger.Default.LogMode(logger.Warn)
}

// LoadTLSConfig builds a *tls.Config from PEM-encoded cert material, or
// returns nil when sslMode does not require one. Used by the mysql adapter,
// which must register a named TLS config with the driver before dialing.
func LoadTLSConfig(sslMode, rootCertPath, certPath, keyPath string) (*tls.Config, error) {
	if sslMode == "" || sslMode == "disable" || sslMode == "false" {
		return nil, nil
	}
	if rootCertPath == "" {
		return nil, nil
	}

	rootCert, err := os.ReadFile(rootCertPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ssl root cert")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(rootCert) {
		return nil, errors.InvalidArgument("failed to parse ssl root cert", nil)
	}

	tlsConfig := &tls.Config{RootCAs: pool}

	if certPath != "" && keyPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load ssl client cert/key")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
