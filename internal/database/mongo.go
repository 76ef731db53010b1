// Package database owns the MongoDB client lifecycle: construct, Connect once, then ready.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

var ErrAlreadyConnected = errors.New("database: connect already called")

// ConnectionError reports that the store could not be reached or rejected the session.
type ConnectionError struct {
	URI string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to mongodb at %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type Config struct {
	URI     string
	Name    string
	Timeout time.Duration
}

type Database struct {
	cfg       Config
	logger    *zap.Logger
	client    *mongo.Client
	db        *mongo.Database
	connected atomic.Bool
	ready     atomic.Bool
}

func New(cfg Config, logger *zap.Logger) *Database {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Database{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "database")),
	}
}

// Connect opens the client and pings the primary. It may be called only once.
func (d *Database) Connect(ctx context.Context) error {
	if !d.connected.CompareAndSwap(false, true) {
		return ErrAlreadyConnected
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(d.cfg.URI).
		SetServerSelectionTimeout(d.cfg.Timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return &ConnectionError{URI: MaskURI(d.cfg.URI), Err: err}
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return &ConnectionError{URI: MaskURI(d.cfg.URI), Err: err}
	}

	d.client = client
	d.db = client.Database(d.cfg.Name)
	d.ready.Store(true)
	d.logger.Info("connected to mongodb", zap.String("uri", MaskURI(d.cfg.URI)), zap.String("database", d.cfg.Name))
	return nil
}

// Ready reports whether Connect succeeded and Disconnect has not been called.
func (d *Database) Ready() bool {
	return d.ready.Load()
}

// Collection returns the named collection; it panics before Connect succeeds.
func (d *Database) Collection(name string) *mongo.Collection {
	if !d.Ready() {
		panic("database: Collection called before Connect")
	}
	return d.db.Collection(name)
}

func (d *Database) Disconnect(ctx context.Context) error {
	if !d.ready.CompareAndSwap(true, false) {
		return nil
	}
	if err := d.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	d.logger.Info("disconnected from mongodb")
	return nil
}

// MaskURI hides credentials in a connection string.
func MaskURI(uri string) string {
	if uri == "" {
		return "<not configured>"
	}
	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return "****"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://****@" + rest[at+1:]
	}
	return uri
}
