package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"helper/internal/model"
	"helper/internal/pkg/ctxutil"
	"helper/internal/service"
)

// DirectoryHandler 通讯录检索处理器
type DirectoryHandler struct {
	directoryService *service.DirectoryService
	emailService     *service.EmailService
}

// NewDirectoryHandler 创建通讯录处理器
func NewDirectoryHandler(directoryService *service.DirectoryService, emailService *service.EmailService) *DirectoryHandler {
	return &DirectoryHandler{
		directoryService: directoryService,
		emailService:     emailService,
	}
}

// Search 按名称检索联系人
// 非教育账号（含匿名）→ 403，任何情况下不返回数据
func (h *DirectoryHandler) Search(c *gin.Context) {
	var req model.DirectorySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	userID, _ := ctxutil.GetUserID(c.Request.Context())

	// 同意流程里顺带下发的委托凭证：顺手入缓存，后续发信免重复授权
	if req.AccessToken != "" && h.emailService != nil {
		if err := h.emailService.StoreToken(c.Request.Context(), userID, req.AccessToken); err != nil {
			log.Warn().Err(err).Msg("failed to cache delegated token from search request")
		}
	}

	contacts, err := h.directoryService.Search(c.Request.Context(), userID, req.Query)
	if err != nil {
		if err == service.ErrNotEducational {
			c.JSON(http.StatusForbidden, model.ErrorResponse{
				Code:    40301,
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "directory search failed",
		})
		return
	}

	c.JSON(http.StatusOK, model.DirectorySearchResponse{Contacts: contacts})
}
