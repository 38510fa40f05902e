package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

type MongoOptions struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	// ConnectTimeout bounds both the initial dial and the startup ping.
	ConnectTimeout time.Duration
}

// ConnectMongoDB opens the cart store. Cart saves are acknowledged by a
// majority so a version check is never made against a rolled-back write.
func ConnectMongoDB(ctx context.Context, o MongoOptions) (*mongo.Database, error) {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.MaxPoolSize == 0 {
		o.MaxPoolSize = 50
	}

	clientOpts := options.Client().
		ApplyURI(o.URI).
		SetAppName("lagc-storefront").
		SetConnectTimeout(o.ConnectTimeout).
		SetServerSelectionTimeout(o.ConnectTimeout).
		SetMaxPoolSize(o.MaxPoolSize).
		SetRetryWrites(true).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo %s: %w", o.Database, err)
	}

	return client.Database(o.Database), nil
}
