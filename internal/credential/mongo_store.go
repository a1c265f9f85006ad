package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "session_credentials"

// storedCredential 会话凭据文档
type storedCredential struct {
	Account    string    `bson:"_id"`        // 登录账号（手机号）
	Credential string    `bson:"credential"` // 会话字符串
	UpdatedAt  time.Time `bson:"updated_at"`
}

// MongoStore 将会话凭据保存在 MongoDB
type MongoStore struct {
	collection *mongo.Collection
	account    string
}

// NewMongoStore 创建凭据存储
func NewMongoStore(db *mongo.Database, account string) *MongoStore {
	return &MongoStore{
		collection: db.Collection(collectionName),
		account:    account,
	}
}

// OnNewCredential 实现 Sink，按账号 upsert
func (s *MongoStore) OnNewCredential(ctx context.Context, credential string) error {
	filter := bson.M{"_id": s.account}
	update := bson.M{
		"$set": bson.M{
			"credential": credential,
			"updated_at": time.Now().UTC(),
		},
	}

	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to store session credential: %w", err)
	}
	return nil
}

// Load 读取已保存的会话字符串，不存在时返回空字符串
func (s *MongoStore) Load(ctx context.Context) (string, error) {
	var doc storedCredential
	err := s.collection.FindOne(ctx, bson.M{"_id": s.account}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session credential: %w", err)
	}
	return doc.Credential, nil
}
