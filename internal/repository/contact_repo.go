package repository

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"helper/internal/model"
)

// ContactRepo 通讯录仓库
// 应用侧只读为主；Create 仅用于种子数据和测试
type ContactRepo struct {
	collection *mongo.Collection
}

// NewContactRepo 创建通讯录仓库
func NewContactRepo(db *mongo.Database) *ContactRepo {
	return &ContactRepo{
		collection: db.Collection("contacts"),
	}
}

// SearchByName 按名称做不区分大小写的子串匹配
// 检索范围严格限定在 ownerID 自己的记录内，不跨用户
func (r *ContactRepo) SearchByName(ctx context.Context, ownerID, query string) ([]model.Contact, error) {
	filter := bson.M{
		"owner_id": ownerID,
		"name": primitive.Regex{
			Pattern: regexp.QuoteMeta(query),
			Options: "i",
		},
	}

	opts := options.Find().SetSort(bson.D{bson.E{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var contacts []model.Contact
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// FindByID 查询某用户的单个联系人
func (r *ContactRepo) FindByID(ctx context.Context, ownerID, contactID string) (*model.Contact, error) {
	var contact model.Contact
	err := r.collection.FindOne(ctx, bson.M{
		"_id":      contactID,
		"owner_id": ownerID,
	}).Decode(&contact)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// Create 创建联系人
func (r *ContactRepo) Create(ctx context.Context, contact *model.Contact) error {
	contact.CreatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, contact)
	return err
}
