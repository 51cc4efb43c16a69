package apierr

import (
	"signsense-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// StatusClientClosedRequest 客户端在响应前断开，沿用 nginx 的 499
const StatusClientClosedRequest = 499

// ClientGone 请求上下文已经结束，且错误来自取消或超时
func ClientGone(c *gin.Context, err error) bool {
	return IsCanceled(err) && c.Request.Context().Err() != nil
}

// Respond 把错误写成 JSON 响应，内部原因只进日志。
// 客户端已断开时只记录 499，不写响应体。
func Respond(c *gin.Context, logger *utils.TaggedLogger, err error) {
	if ClientGone(c, err) {
		logger.Info("客户端已断开，放弃本次请求", map[string]interface{}{
			"request_id": c.GetString("request_id"),
			"error":      err.Error(),
		})
		c.AbortWithStatus(StatusClientClosedRequest)
		return
	}

	status, body := ToResponse(err)
	fields := map[string]interface{}{
		"request_id": c.GetString("request_id"),
		"code":       body.Code,
		"file":       body.File,
		"error":      err.Error(),
	}
	if status >= 500 {
		logger.Error("请求处理失败", fields)
	} else {
		logger.Warn("请求参数错误", fields)
	}
	c.AbortWithStatusJSON(status, body)
}
