package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"helper/internal/model"
)

// ConversationRepo 会话仓库
// upsert key 为 (user_id, conversation_id)：相同 key 重复写入替换整行，
// 不会产生重复记录
type ConversationRepo struct {
	collection *mongo.Collection
}

// NewConversationRepo 创建会话仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{
		collection: db.Collection("conversations"),
	}
}

// Upsert 写入或替换会话
func (r *ConversationRepo) Upsert(ctx context.Context, conv *model.Conversation) error {
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = time.Now()
	}

	filter := bson.M{
		"user_id":         conv.UserID,
		"conversation_id": conv.ConversationID,
	}
	update := bson.M{
		"$set": bson.M{
			"title":      conv.Title,
			"messages":   conv.Messages,
			"updated_at": conv.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"user_id":         conv.UserID,
			"conversation_id": conv.ConversationID,
			"created_at":      conv.CreatedAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// FindByID 查询某用户的单个会话
func (r *ConversationRepo) FindByID(ctx context.Context, userID, convID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.collection.FindOne(ctx, bson.M{
		"user_id":         userID,
		"conversation_id": convID,
	}).Decode(&conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByUserID 查询用户全部会话，按最近更新优先
func (r *ConversationRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var convs []*model.Conversation
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}

	return convs, nil
}

// Delete 删除某用户的单个会话
func (r *ConversationRepo) Delete(ctx context.Context, userID, convID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{
		"user_id":         userID,
		"conversation_id": convID,
	})
	return err
}
