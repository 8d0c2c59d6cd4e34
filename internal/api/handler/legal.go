package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mika2333/daily_english_server/internal/pkg/cipher"
	"github.com/mika2333/daily_english_server/internal/pkg/response"
)

type LegalHandler struct {
	codec *cipher.Codec
}

func NewLegalHandler(codec *cipher.Codec) *LegalHandler {
	return &LegalHandler{codec: codec}
}

// Decode 法务页联系方式解码
// POST /api/v1/legal/decode
// 前端持混淆串，展示时请求服务端还原（防爬虫抓明文，非安全边界）
func (h *LegalHandler) Decode(c *gin.Context) {
	var req struct {
		Encoded string `json:"encoded" binding:"required,max=512"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	plain, err := h.codec.Decode(req.Encoded)
	if err != nil {
		response.ParamError(c, "无法解码")
		return
	}

	response.Success(c, gin.H{"decoded": plain})
}
