package service

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"helper/internal/model"
	"helper/internal/model/auth"
	"helper/internal/pkg/cache"
	"helper/internal/pkg/localstore"
)

func newChatFixture(t *testing.T, remote ConversationStore) (*ChatService, *fakeExchanger, *fakeSender) {
	t.Helper()

	local, err := localstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("localstore: %v", err)
	}

	users := &fakeUsers{users: map[string]*auth.User{
		"edu-user": {ID: "edu-user", Educational: true},
	}}
	contacts := &fakeContacts{contacts: []model.Contact{
		{ID: "c1", OwnerID: "edu-user", Name: "John Smith", Email: "john.smith@school.edu"},
		{ID: "c2", OwnerID: "edu-user", Name: "John Doe", Email: "john.doe@school.edu"},
		{ID: "c3", OwnerID: "edu-user", Name: "Johnny Cash", Email: "johnny@school.edu"},
		{ID: "c4", OwnerID: "edu-user", Name: "Mary Jones", Email: "mary@school.edu"},
	}}
	sender := &fakeSender{}
	tokens := newFakeTokens()
	// 委托凭证已在缓存中（走过一次 OAuth 同意流程之后的状态）
	tokens.m[cache.GmailTokenKey("edu-user")] = "tok-cached"
	emailSvc := NewEmailService(NewDirectoryService(users, contacts), sender, tokens, false)

	exchanger := &fakeExchanger{reply: "Hi! How can I help you today?"}
	return NewChatService(exchanger, remote, local, emailSvc, nil), exchanger, sender
}

func TestSendTurnChatPath(t *testing.T) {
	Convey("聊天路径", t, func() {
		ctx := context.Background()

		Convey("场景：发送 Hello", func() {
			svc, exchanger, _ := newChatFixture(t, nil)

			resp, err := svc.SendTurn(ctx, "", "Hello", "")
			So(err, ShouldBeNil)
			So(exchanger.callCount(), ShouldEqual, 1)

			conv := resp.Conversation
			So(conv, ShouldNotBeNil)
			So(conv.Title, ShouldEqual, "Hello")

			// 开场白 + 用户消息 + 助手回复，顺序保持
			n := len(conv.Messages)
			So(n, ShouldBeGreaterThanOrEqualTo, 2)
			So(conv.Messages[n-2].Role, ShouldEqual, model.RoleUser)
			So(conv.Messages[n-2].Content, ShouldEqual, "Hello")
			So(conv.Messages[n-1].Role, ShouldEqual, model.RoleAssistant)
			So(conv.Messages[n-1].Content, ShouldEqual, "Hi! How can I help you today?")
			So(resp.Assistant, ShouldNotBeNil)
		})

		Convey("空回合：不追加、不调用 AI", func() {
			svc, exchanger, _ := newChatFixture(t, nil)

			before := len(svc.List(ctx, "").Conversations[0].Messages)
			resp, err := svc.SendTurn(ctx, "", "", "")
			So(err, ShouldBeNil)
			So(exchanger.callCount(), ShouldEqual, 0)
			So(resp.Assistant, ShouldBeNil)
			So(len(resp.Conversation.Messages), ShouldEqual, before)
		})

		Convey("AI 失败时兜底文案照常入会话", func() {
			svc, exchanger, _ := newChatFixture(t, nil)
			exchanger.err = context.DeadlineExceeded

			resp, err := svc.SendTurn(ctx, "", "Hello", "")
			So(err, ShouldBeNil)
			last := resp.Conversation.Messages[len(resp.Conversation.Messages)-1]
			So(last.Role, ShouldEqual, model.RoleAssistant)
			So(last.Content, ShouldContainSubstring, "I'm having trouble connecting")
		})
	})
}

func TestSendTurnEmailPath(t *testing.T) {
	Convey("邮件旁路路径", t, func() {
		ctx := context.Background()

		Convey("场景：唯一命中，跳过 AI，预选联系人", func() {
			svc, exchanger, _ := newChatFixture(t, nil)

			resp, err := svc.SendTurn(ctx, "edu-user", "please send an email to Mary", "")
			So(err, ShouldBeNil)
			So(exchanger.callCount(), ShouldEqual, 0)
			So(resp.Assistant, ShouldBeNil)
			So(resp.EmailFlow, ShouldNotBeNil)
			So(resp.EmailFlow.State, ShouldEqual, FlowComposing)
			So(resp.EmailFlow.Selected.Name, ShouldEqual, "Mary Jones")
		})

		Convey("场景：三个命中进入 selecting，选第二个后 composing", func() {
			svc, _, sender := newChatFixture(t, nil)

			resp, err := svc.SendTurn(ctx, "edu-user", "send an email to John", "")
			So(err, ShouldBeNil)
			So(resp.EmailFlow.State, ShouldEqual, FlowSelecting)
			So(len(resp.EmailFlow.Candidates), ShouldEqual, 3)

			second := resp.EmailFlow.Candidates[1]
			sel, err := svc.SelectContact(ctx, "edu-user", &model.SelectContactRequest{
				ContactID: second.ID,
				Subject:   "Hi",
				Body:      "Quick question",
			})
			So(err, ShouldBeNil)
			So(sel.EmailFlow.State, ShouldEqual, FlowSent)
			So(sel.EmailFlow.Selected.ID, ShouldEqual, second.ID)

			// 发给且只发给选中的那一个
			So(len(sender.sent), ShouldEqual, 1)
			So(sender.sent[0].to, ShouldEqual, second.Email)

			// 发送结果写进了会话记录
			msgs := sel.Conversation.Messages
			So(msgs[len(msgs)-1].Content, ShouldContainSubstring, "Email sent to")
		})

		Convey("非教育账号的邮件意图转为用户可见拒绝", func() {
			svc, exchanger, _ := newChatFixture(t, nil)

			resp, err := svc.SendTurn(ctx, "", "send an email to John", "")
			So(err, ShouldBeNil)
			So(exchanger.callCount(), ShouldEqual, 0)
			So(resp.EmailFlow.State, ShouldEqual, FlowFailed)
			So(resp.EmailFlow.Notice, ShouldContainSubstring, "educational")
		})

		Convey("消歧取消回到 idle", func() {
			svc, _, _ := newChatFixture(t, nil)
			_, err := svc.SendTurn(ctx, "edu-user", "send an email to John", "")
			So(err, ShouldBeNil)

			resp, err := svc.SelectContact(ctx, "edu-user", &model.SelectContactRequest{Dismiss: true})
			So(err, ShouldBeNil)
			So(resp.EmailFlow.State, ShouldEqual, FlowIdle)
		})
	})
}

func TestSyncAndLoad(t *testing.T) {
	Convey("同步与加载", t, func() {
		ctx := context.Background()

		Convey("有身份时每个会话并发 upsert，重复同步不产生重复行", func() {
			remote := newFakeRemote()
			svc, _, _ := newChatFixture(t, remote)

			_, err := svc.SendTurn(ctx, "u1", "Hello", "")
			So(err, ShouldBeNil)
			So(remote.count(), ShouldEqual, 1)

			// 同一会话再写一轮：仍是一行，内容为最新
			_, err = svc.SendTurn(ctx, "u1", "Again", "")
			So(err, ShouldBeNil)
			So(remote.count(), ShouldEqual, 1)
		})

		Convey("部分失败可观测：失败的会话带错误，其余照常写入", func() {
			remote := newFakeRemote()
			svc, _, _ := newChatFixture(t, remote)

			first, _ := svc.Create(ctx, "u1")
			second, _ := svc.Create(ctx, "u1")
			remote.failIDs[first.ConversationID] = true

			results := svc.Sync(ctx, "u1")
			// 初始会话 + 两个新建
			So(len(results), ShouldEqual, 3)

			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
					So(r.ConversationID, ShouldEqual, first.ConversationID)
				}
			}
			So(failed, ShouldEqual, 1)
			_ = second
		})

		Convey("启动加载在途时的并发回合不丢失", func() {
			remote := newFakeRemote()
			remote.listDelay = 100 * time.Millisecond
			svc, _, _ := newChatFixture(t, remote)

			// 两个请求同时打到尚未加载完的身份上，
			// 启动加载的 Replace 不得覆盖任何一条
			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i, text := range []string{"first turn", "second turn"} {
				wg.Add(1)
				go func(i int, text string) {
					defer wg.Done()
					_, errs[i] = svc.SendTurn(ctx, "u1", text, "")
				}(i, text)
			}
			wg.Wait()
			So(errs[0], ShouldBeNil)
			So(errs[1], ShouldBeNil)

			var contents []string
			for _, conv := range svc.List(ctx, "u1").Conversations {
				for _, msg := range conv.Messages {
					contents = append(contents, msg.Content)
				}
			}
			So(contents, ShouldContain, "first turn")
			So(contents, ShouldContain, "second turn")
		})

		Convey("有身份且远端正常为空时开新会话，不回读本地旧数据", func() {
			local, err := localstore.New(t.TempDir())
			So(err, ShouldBeNil)
			So(local.Save("u1", []*model.Conversation{{
				ConversationID: "stale-conv",
				UserID:         "u1",
				Title:          "stale",
			}}), ShouldBeNil)

			users := &fakeUsers{users: map[string]*auth.User{}}
			emailSvc := NewEmailService(NewDirectoryService(users, &fakeContacts{}), &fakeSender{}, newFakeTokens(), false)
			svc := NewChatService(&fakeExchanger{reply: "ok"}, newFakeRemote(), local, emailSvc, nil)

			list := svc.List(ctx, "u1")
			So(list.Total, ShouldEqual, 1)
			for _, conv := range list.Conversations {
				So(conv.ConversationID, ShouldNotEqual, "stale-conv")
			}
		})

		Convey("匿名会话落在本地存储，下个进程能恢复", func() {
			local, err := localstore.New(t.TempDir())
			So(err, ShouldBeNil)

			users := &fakeUsers{users: map[string]*auth.User{}}
			contacts := &fakeContacts{}
			emailSvc := NewEmailService(NewDirectoryService(users, contacts), &fakeSender{}, newFakeTokens(), false)

			svc1 := NewChatService(&fakeExchanger{reply: "ok"}, nil, local, emailSvc, nil)
			resp, err := svc1.SendTurn(ctx, "", "remember me", "")
			So(err, ShouldBeNil)
			convID := resp.Conversation.ConversationID

			// 新的服务实例模拟进程重启，共享同一本地目录
			svc2 := NewChatService(&fakeExchanger{reply: "ok"}, nil, local, emailSvc, nil)
			list := svc2.List(ctx, "")
			So(list.Total, ShouldBeGreaterThanOrEqualTo, 1)

			found := false
			for _, conv := range list.Conversations {
				if conv.ConversationID == convID {
					found = true
					So(conv.Title, ShouldEqual, "remember me")
				}
			}
			So(found, ShouldBeTrue)
		})

		Convey("删除会话后集合不为空且远端行被移除", func() {
			remote := newFakeRemote()
			svc, _, _ := newChatFixture(t, remote)

			_, err := svc.SendTurn(ctx, "u1", "Hello", "")
			So(err, ShouldBeNil)
			convID := svc.List(ctx, "u1").ActiveID

			ok, _ := svc.Delete(ctx, "u1", convID)
			So(ok, ShouldBeTrue)

			list := svc.List(ctx, "u1")
			So(list.Total, ShouldBeGreaterThanOrEqualTo, 1)
			So(list.ActiveID, ShouldNotEqual, convID)
		})
	})
}
