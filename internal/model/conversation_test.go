package model

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDeriveTitle(t *testing.T) {
	Convey("标题推导", t, func() {
		Convey("短文本原样返回", func() {
			So(DeriveTitle("Hello"), ShouldEqual, "Hello")
		})

		Convey("恰好30个rune不加省略号", func() {
			text := strings.Repeat("x", 30)
			So(DeriveTitle(text), ShouldEqual, text)
		})

		Convey("超过30个rune截断并加省略号", func() {
			text := strings.Repeat("x", 31)
			So(DeriveTitle(text), ShouldEqual, strings.Repeat("x", 30)+"...")
		})

		Convey("按rune截断，多字节字符不被劈开", func() {
			text := strings.Repeat("测", 40)
			got := DeriveTitle(text)
			So(got, ShouldEqual, strings.Repeat("测", 30)+"...")
		})
	})
}

func TestMessageIsEmpty(t *testing.T) {
	Convey("消息空判定", t, func() {
		So((&Message{}).IsEmpty(), ShouldBeTrue)
		So((&Message{Content: "hi"}).IsEmpty(), ShouldBeFalse)
		So((&Message{Image: "data:image/png;base64,aGk="}).IsEmpty(), ShouldBeFalse)
	})
}

func TestConversationClone(t *testing.T) {
	Convey("深拷贝", t, func() {
		conv := &Conversation{
			ConversationID: "c1",
			Title:          "t",
			Messages:       []Message{{ID: "m1", Content: "hello"}},
		}
		cp := conv.Clone()
		cp.Messages[0].Content = "changed"
		cp.Title = "changed"

		So(conv.Messages[0].Content, ShouldEqual, "hello")
		So(conv.Title, ShouldEqual, "t")
	})
}
