package ai

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	. "github.com/smartystreets/goconvey/convey"

	"helper/internal/model"
)

// stubChatModel 可编程的 ChatModel 假实现
type stubChatModel struct {
	reply    *schema.Message
	err      error
	captured []*schema.Message
}

func (s *stubChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	s.captured = input
	if s.err != nil {
		return nil, s.err
	}
	return s.reply, nil
}

func (s *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestExchange(t *testing.T) {
	Convey("AI 交换", t, func() {
		ctx := context.Background()

		Convey("成功时返回模型回复原文", func() {
			stub := &stubChatModel{reply: schema.AssistantMessage("Hi there!", nil)}
			client := NewClientWithModel(stub)

			got, err := client.Exchange(ctx, &ExchangeRequest{Message: "Hello"})
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "Hi there!")
		})

		Convey("人设指令始终是第一条消息", func() {
			stub := &stubChatModel{reply: schema.AssistantMessage("ok", nil)}
			client := NewClientWithModel(stub)

			_, err := client.Exchange(ctx, &ExchangeRequest{Message: "who are you"})
			So(err, ShouldBeNil)
			So(len(stub.captured), ShouldEqual, 2)
			So(stub.captured[0].Role, ShouldEqual, schema.System)
			So(stub.captured[0].Content, ShouldEqual, Persona)
		})

		Convey("历史按序转换，角色映射只在这一层发生", func() {
			stub := &stubChatModel{reply: schema.AssistantMessage("ok", nil)}
			client := NewClientWithModel(stub)

			history := []model.Message{
				{Role: model.RoleUser, Content: "first"},
				{Role: model.RoleAssistant, Content: "second"},
			}
			_, err := client.Exchange(ctx, &ExchangeRequest{Message: "third", History: history})
			So(err, ShouldBeNil)

			// persona + 2条历史 + 当前消息
			So(len(stub.captured), ShouldEqual, 4)
			So(stub.captured[1].Role, ShouldEqual, schema.User)
			So(stub.captured[1].Content, ShouldEqual, "first")
			So(stub.captured[2].Role, ShouldEqual, schema.Assistant)
			So(stub.captured[3].Content, ShouldEqual, "third")
		})

		Convey("带图片的消息拆成多段内容", func() {
			stub := &stubChatModel{reply: schema.AssistantMessage("ok", nil)}
			client := NewClientWithModel(stub)

			_, err := client.Exchange(ctx, &ExchangeRequest{
				Message: "what is this",
				Image:   "data:image/png;base64,aGVsbG8=",
			})
			So(err, ShouldBeNil)

			last := stub.captured[len(stub.captured)-1]
			So(len(last.MultiContent), ShouldEqual, 2)
			So(last.MultiContent[0].Type, ShouldEqual, schema.ChatMessagePartTypeText)
			So(last.MultiContent[1].Type, ShouldEqual, schema.ChatMessagePartTypeImageURL)
			So(last.MultiContent[1].ImageURL.MIMEType, ShouldEqual, "image/png")
		})

		Convey("普通 URL 图片原样透传，不当作 data URI 解析", func() {
			stub := &stubChatModel{reply: schema.AssistantMessage("ok", nil)}
			client := NewClientWithModel(stub)

			_, err := client.Exchange(ctx, &ExchangeRequest{
				Message: "what is this",
				Image:   "https://example.org/a.png",
			})
			So(err, ShouldBeNil)

			last := stub.captured[len(stub.captured)-1]
			part := last.MultiContent[len(last.MultiContent)-1]
			So(part.ImageURL.URL, ShouldEqual, "https://example.org/a.png")
			So(part.ImageURL.MIMEType, ShouldBeEmpty)
		})

		Convey("模型报错时返回固定兜底文案", func() {
			stub := &stubChatModel{err: errors.New("connection refused")}
			client := NewClientWithModel(stub)

			got, err := client.Exchange(ctx, &ExchangeRequest{Message: "Hello"})
			So(err, ShouldNotBeNil)
			So(got, ShouldEqual, FallbackMessage)
		})

		Convey("空回复同样降级为兜底文案", func() {
			stub := &stubChatModel{reply: schema.AssistantMessage("", nil)}
			client := NewClientWithModel(stub)

			got, err := client.Exchange(ctx, &ExchangeRequest{Message: "Hello"})
			So(err, ShouldNotBeNil)
			So(got, ShouldEqual, FallbackMessage)
		})

		Convey("模型未配置时也返回兜底文案", func() {
			client := NewClientWithModel(nil)
			got, err := client.Exchange(ctx, &ExchangeRequest{Message: "Hello"})
			So(err, ShouldNotBeNil)
			So(got, ShouldEqual, FallbackMessage)
		})
	})
}
