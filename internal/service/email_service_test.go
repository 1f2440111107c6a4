package service

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"helper/internal/model"
	"helper/internal/model/auth"
	"helper/internal/pkg/cache"
)

func newEmailFixture(noMatchReply bool) (*EmailService, *fakeSender, *fakeTokens) {
	users := &fakeUsers{users: map[string]*auth.User{
		"edu-user": {ID: "edu-user", Educational: true},
	}}
	contacts := &fakeContacts{contacts: []model.Contact{
		{ID: "c1", OwnerID: "edu-user", Name: "John Smith", Email: "john.smith@school.edu"},
		{ID: "c2", OwnerID: "edu-user", Name: "John Doe", Email: "john.doe@school.edu"},
		{ID: "c3", OwnerID: "edu-user", Name: "Johnny Cash", Email: "johnny@school.edu"},
		{ID: "c4", OwnerID: "edu-user", Name: "Mary Jones", Email: "mary@school.edu"},
	}}
	directory := NewDirectoryService(users, contacts)
	sender := &fakeSender{}
	tokens := newFakeTokens()
	return NewEmailService(directory, sender, tokens, noMatchReply), sender, tokens
}

func TestEmailFlowTransitions(t *testing.T) {
	Convey("邮件旁路状态机", t, func() {
		ctx := context.Background()

		Convey("唯一命中直接进入 composing，联系人已预选", func() {
			svc, _, _ := newEmailFixture(false)
			view, err := svc.Begin(ctx, "edu-user", "Mary")
			So(err, ShouldBeNil)
			So(view.State, ShouldEqual, FlowComposing)
			So(view.Selected, ShouldNotBeNil)
			So(view.Selected.Name, ShouldEqual, "Mary Jones")
		})

		Convey("多命中进入 selecting，给出全部候选", func() {
			svc, _, _ := newEmailFixture(false)
			view, err := svc.Begin(ctx, "edu-user", "John")
			So(err, ShouldBeNil)
			So(view.State, ShouldEqual, FlowSelecting)
			So(len(view.Candidates), ShouldEqual, 3)
			So(view.Selected, ShouldBeNil)

			Convey("选中第二个候选进入 composing，目标就是那一个", func() {
				second := view.Candidates[1]
				next, err := svc.Select(ctx, "edu-user", second.ID)
				So(err, ShouldBeNil)
				So(next.State, ShouldEqual, FlowComposing)
				So(next.Selected.ID, ShouldEqual, second.ID)
			})

			Convey("候选之外的ID被拒绝", func() {
				_, err := svc.Select(ctx, "edu-user", "c4")
				So(err, ShouldNotBeNil)
			})

			Convey("取消选择回到 idle", func() {
				view := svc.Dismiss("edu-user")
				So(view.State, ShouldEqual, FlowIdle)
			})
		})

		Convey("未命中回到 idle，默认静默", func() {
			svc, _, _ := newEmailFixture(false)
			view, err := svc.Begin(ctx, "edu-user", "Nobody")
			So(err, ShouldBeNil)
			So(view.State, ShouldEqual, FlowIdle)
			So(view.Notice, ShouldBeEmpty)
		})

		Convey("未命中且配置了回写提示时带提示文案", func() {
			svc, _, _ := newEmailFixture(true)
			view, err := svc.Begin(ctx, "edu-user", "Nobody")
			So(err, ShouldBeNil)
			So(view.State, ShouldEqual, FlowIdle)
			So(view.Notice, ShouldContainSubstring, "Nobody")
		})

		Convey("Flow 随状态机迁移，未进入旁路的身份为 idle", func() {
			svc, _, _ := newEmailFixture(false)
			So(svc.Flow("edu-user").State, ShouldEqual, FlowIdle)

			_, err := svc.Begin(ctx, "edu-user", "John")
			So(err, ShouldBeNil)

			view := svc.Flow("edu-user")
			So(view.State, ShouldEqual, FlowSelecting)
			So(len(view.Candidates), ShouldEqual, 3)
		})

		Convey("非 selecting 状态下 Select 拒绝", func() {
			svc, _, _ := newEmailFixture(false)
			_, err := svc.Select(ctx, "edu-user", "c1")
			So(err, ShouldEqual, ErrNoSelection)
		})

		Convey("非教育账号启动旁路直接失败", func() {
			svc, _, _ := newEmailFixture(false)
			_, err := svc.Begin(ctx, "stranger", "John")
			So(err, ShouldEqual, ErrNotEducational)
		})
	})
}

func TestEmailSend(t *testing.T) {
	Convey("发信与凭证", t, func() {
		ctx := context.Background()

		Convey("composing 状态下发送成功进入 sent", func() {
			svc, sender, _ := newEmailFixture(false)
			_, err := svc.Begin(ctx, "edu-user", "Mary")
			So(err, ShouldBeNil)

			view, err := svc.SendComposed(ctx, "edu-user", "Lunch", "See you at noon", "tok-1")
			So(err, ShouldBeNil)
			So(view.State, ShouldEqual, FlowSent)
			So(view.Notice, ShouldContainSubstring, "Mary Jones")
			So(len(sender.sent), ShouldEqual, 1)
			So(sender.sent[0].to, ShouldEqual, "mary@school.edu")
			So(sender.sent[0].subject, ShouldEqual, "Lunch")
		})

		Convey("发送失败进入 failed，至多发送一次", func() {
			svc, sender, _ := newEmailFixture(false)
			sender.err = errors.New("boom")
			_, err := svc.Begin(ctx, "edu-user", "Mary")
			So(err, ShouldBeNil)

			view, err := svc.SendComposed(ctx, "edu-user", "s", "b", "tok-1")
			So(err, ShouldNotBeNil)
			So(view.State, ShouldEqual, FlowFailed)
			So(len(sender.sent), ShouldEqual, 1)
		})

		Convey("没有选定联系人时发送被拒", func() {
			svc, _, _ := newEmailFixture(false)
			_, err := svc.SendComposed(ctx, "edu-user", "s", "b", "tok-1")
			So(err, ShouldEqual, ErrNoSelection)
		})

		Convey("显式凭证顺手写入缓存，后续回合免传", func() {
			svc, sender, tokens := newEmailFixture(false)
			contacts := []model.Contact{{ID: "c4", Name: "Mary Jones", Email: "mary@school.edu"}}

			So(svc.SendTo(ctx, "edu-user", contacts, "s", "b", "tok-explicit"), ShouldBeNil)
			So(sender.sent[0].token, ShouldEqual, "tok-explicit")

			cached, err := tokens.GetString(ctx, cache.GmailTokenKey("edu-user"))
			So(err, ShouldBeNil)
			So(cached, ShouldEqual, "tok-explicit")

			// 第二次不带凭证，走缓存
			So(svc.SendTo(ctx, "edu-user", contacts, "s", "b", ""), ShouldBeNil)
			So(sender.sent[1].token, ShouldEqual, "tok-explicit")
		})

		Convey("既没显式凭证也没缓存时拒绝", func() {
			svc, sender, _ := newEmailFixture(false)
			contacts := []model.Contact{{ID: "c4", Name: "Mary Jones", Email: "mary@school.edu"}}
			err := svc.SendTo(ctx, "edu-user", contacts, "s", "b", "")
			So(err, ShouldEqual, ErrNoToken)
			So(len(sender.sent), ShouldEqual, 0)
		})

		Convey("StoreToken/ClearToken 管理固定key缓存", func() {
			svc, _, tokens := newEmailFixture(false)
			So(svc.StoreToken(ctx, "edu-user", "tok-x"), ShouldBeNil)

			got, err := tokens.GetString(ctx, cache.GmailTokenKey("edu-user"))
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "tok-x")

			So(svc.ClearToken(ctx, "edu-user"), ShouldBeNil)
			_, err = tokens.GetString(ctx, cache.GmailTokenKey("edu-user"))
			So(cache.IsMiss(err), ShouldBeTrue)
		})
	})
}
