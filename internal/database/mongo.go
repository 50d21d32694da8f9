package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoConnectTimeout はMongoDBへの初回接続確認のタイムアウト。
const mongoConnectTimeout = 10 * time.Second

// ConnectMongo はMongoDBに接続し、PINGで疎通を確認したうえでデータベースを返す。
// 切断はdb.Client().Disconnect()で行う。
func ConnectMongo(ctx context.Context, mongoURL, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(
		options.Client().
			ApplyURI(mongoURL).
			SetConnectTimeout(mongoConnectTimeout).
			SetRetryWrites(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client.Database(database), nil
}
