package model

import (
	"time"
)

// Contact 通讯录联系人
// 由目录方拥有，应用侧只读；OwnerID 限定可见范围，检索不跨用户
type Contact struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	OwnerID    string    `bson:"owner_id" json:"-"`
	Name       string    `bson:"name" json:"name"`
	Email      string    `bson:"email" json:"email"`
	Department string    `bson:"department,omitempty" json:"department,omitempty"`
	Title      string    `bson:"title,omitempty" json:"title,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"-"`
}
