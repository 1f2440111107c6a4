package intent

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("意图分类", t, func() {
		Convey("同时含 send 和 email 判为邮件意图", func() {
			it := Classify("Please send an email to John Smith")
			So(it.Kind, ShouldEqual, KindEmail)
			So(it.Name, ShouldEqual, "John Smith")
		})

		Convey("大小写不敏感", func() {
			it := Classify("SEND AN EMAIL TO alice")
			So(it.Kind, ShouldEqual, KindEmail)
			So(it.Name, ShouldEqual, "alice")
		})

		Convey("名字截止到句读符", func() {
			it := Classify("send an email to Bob Lee, about the meeting")
			So(it.Kind, ShouldEqual, KindEmail)
			So(it.Name, ShouldEqual, "Bob Lee")
		})

		Convey("只有其中一个词不算邮件意图", func() {
			So(Classify("send me the report").Kind, ShouldEqual, KindChat)
			So(Classify("what is my email address").Kind, ShouldEqual, KindChat)
		})

		Convey("词元按词边界匹配，sender/emails 不误命中 send", func() {
			So(Classify("the sender of this email is unknown").Kind, ShouldEqual, KindChat)
		})

		Convey("emails 复数仍含 email 词元之外的形态，不命中", func() {
			So(Classify("send all my emailscan here").Kind, ShouldEqual, KindChat)
		})

		Convey("有意图但提取不到名字时 Name 为空", func() {
			it := Classify("can you send the email now")
			So(it.Kind, ShouldEqual, KindEmail)
			So(it.Name, ShouldBeEmpty)
		})

		Convey("普通聊天", func() {
			So(Classify("Hello, how are you?").Kind, ShouldEqual, KindChat)
			So(Classify("").Kind, ShouldEqual, KindChat)
		})
	})
}
