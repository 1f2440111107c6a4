package service

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"helper/internal/model"
	"helper/internal/model/auth"
)

func TestDirectorySearch(t *testing.T) {
	Convey("通讯录检索", t, func() {
		ctx := context.Background()
		users := &fakeUsers{users: map[string]*auth.User{
			"edu-user":   {ID: "edu-user", Educational: true},
			"plain-user": {ID: "plain-user", Educational: false},
		}}
		contacts := &fakeContacts{contacts: []model.Contact{
			{ID: "c1", OwnerID: "edu-user", Name: "John Smith", Email: "john.smith@school.edu"},
			{ID: "c2", OwnerID: "edu-user", Name: "John Doe", Email: "john.doe@school.edu"},
			{ID: "c3", OwnerID: "other-user", Name: "John Hidden", Email: "hidden@school.edu"},
		}}
		svc := NewDirectoryService(users, contacts)

		Convey("教育账号可以检索，大小写不敏感子串匹配", func() {
			got, err := svc.Search(ctx, "edu-user", "john")
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
		})

		Convey("检索范围限定在自己的通讯录，不跨用户", func() {
			got, err := svc.Search(ctx, "edu-user", "Hidden")
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 0)
		})

		Convey("非教育账号被拒绝，拿不到任何数据", func() {
			got, err := svc.Search(ctx, "plain-user", "john")
			So(err, ShouldEqual, ErrNotEducational)
			So(got, ShouldBeNil)
		})

		Convey("匿名请求一律拒绝", func() {
			_, err := svc.Search(ctx, "", "john")
			So(err, ShouldEqual, ErrNotEducational)
		})

		Convey("未知用户同样拒绝", func() {
			_, err := svc.Search(ctx, "ghost", "john")
			So(err, ShouldEqual, ErrNotEducational)
		})

		Convey("空查询返回空集合而不是报错", func() {
			got, err := svc.Search(ctx, "edu-user", "   ")
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})
	})
}

func TestIsEducationalEmail(t *testing.T) {
	Convey("教育邮箱域判定", t, func() {
		So(IsEducationalEmail("alice@stanford.edu"), ShouldBeTrue)
		So(IsEducationalEmail("bob@cs.tsinghua.edu.cn"), ShouldBeTrue)
		So(IsEducationalEmail("carol@ox.ac.uk"), ShouldBeTrue)
		So(IsEducationalEmail("dave@gmail.com"), ShouldBeFalse)
		So(IsEducationalEmail("not-an-email"), ShouldBeFalse)
	})
}
