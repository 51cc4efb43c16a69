// Package health 提供存活探针
package health

import (
	"context"
	"net/http"

	"signsense-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// StatusResponse 存活响应
type StatusResponse struct {
	Message string `json:"message"`
}

// DefaultHealthService 存活探针服务，不依赖任何预测器
type DefaultHealthService struct {
	logger *utils.Logger
}

// NewDefaultHealthService 构造函数
func NewDefaultHealthService(logger *utils.Logger) *DefaultHealthService {
	return &DefaultHealthService{logger: logger}
}

// Start 注册根路径
func (s *DefaultHealthService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	engine.GET("/", s.handleGet)

	s.logger.Info("Health HTTP服务路由注册完成")
	return nil
}

func (s *DefaultHealthService) handleGet(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Message: "API is working!"})
}
