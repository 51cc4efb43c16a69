package sequence

import (
	"context"

	"github.com/gin-gonic/gin"
)

// SequenceService 定义多帧识别服务接口
type SequenceService interface {
	// 将路由注册到 engine 与 apiGroup
	Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error
}
