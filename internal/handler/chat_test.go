package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"helper/internal/ai"
	"helper/internal/server/middleware"
	"helper/internal/service"
)

type stubExchanger struct {
	reply string
	err   error
}

func (s *stubExchanger) Exchange(_ context.Context, _ *ai.ExchangeRequest) (string, error) {
	if s.err != nil {
		return ai.FallbackMessage, s.err
	}
	return s.reply, nil
}

func newProxyEngine(ex service.Exchanger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.CORS())

	chatSvc := service.NewChatService(ex, nil, nil, nil, nil)
	h := NewChatHandler(chatSvc)
	engine.POST("/api/v1/chat", h.Chat)
	return engine
}

func TestChatProxyContract(t *testing.T) {
	Convey("AI 代理接口契约", t, func() {
		Convey("成功：{message, conversationHistory} → {response}", func() {
			engine := newProxyEngine(&stubExchanger{reply: "Hello from Helper"})

			body := `{"message":"Hello","conversationHistory":[{"role":"user","content":"earlier"}]}`
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			engine.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")

			var resp map[string]string
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp["response"], ShouldEqual, "Hello from Helper")
		})

		Convey("失败：非2xx且带 {error, fallbackResponse}", func() {
			engine := newProxyEngine(&stubExchanger{err: errors.New("upstream down")})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"Hello"}`))
			req.Header.Set("Content-Type", "application/json")
			engine.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusBadGateway)

			var resp map[string]string
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp["error"], ShouldNotBeEmpty)
			So(resp["fallbackResponse"], ShouldEqual, ai.FallbackMessage)
		})

		Convey("message 与 image 皆空 → 400", func() {
			engine := newProxyEngine(&stubExchanger{reply: "unused"})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"conversationHistory":[]}`))
			req.Header.Set("Content-Type", "application/json")
			engine.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("OPTIONS 预检：空 200 加放行头", func() {
			engine := newProxyEngine(&stubExchanger{reply: "unused"})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
			req.Header.Set("Origin", "https://example.org")
			engine.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.Len(), ShouldEqual, 0)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			So(w.Header().Get("Access-Control-Allow-Methods"), ShouldContainSubstring, "POST")
		})
	})
}
