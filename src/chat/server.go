// Package chat 把文本消息转发给对话模型，供无障碍助手使用
package chat

import (
	"context"
	"net/http"
	"strings"

	"signsense-server-go/src/core/apierr"
	"signsense-server-go/src/core/providers/llm"
	"signsense-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// DefaultSystemPrompt 未配置 system_prompt 时使用
const DefaultSystemPrompt = "You are a helpful assistant for accessibility support."

// ChatRequest 对话请求
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse 对话响应
type ChatResponse struct {
	Reply string `json:"reply"`
}

// DefaultChatService 对话转发 HTTP 服务
type DefaultChatService struct {
	provider     llm.Provider
	systemPrompt string
	logger       *utils.TaggedLogger
}

// NewDefaultChatService 构造函数
func NewDefaultChatService(provider llm.Provider, systemPrompt string, logger *utils.Logger) *DefaultChatService {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &DefaultChatService{
		provider:     provider,
		systemPrompt: systemPrompt,
		logger:       logger.WithTag("chat"),
	}
}

// Start 注册 /chat 路由
func (s *DefaultChatService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	engine.POST("/chat", s.handlePost)

	s.logger.Info("Chat HTTP服务路由注册完成")
	return nil
}

func (s *DefaultChatService) handlePost(c *gin.Context) {
	var req ChatRequest
	// 请求体不是合法 JSON 时按空消息处理
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("请求体解析失败", map[string]interface{}{
			"request_id": c.GetString("request_id"),
			"error":      err.Error(),
		})
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		apierr.Respond(c, s.logger, apierr.Invalid("", "No message provided"))
		return
	}

	reply, err := s.Reply(c.Request.Context(), message)
	if err != nil {
		apierr.Respond(c, s.logger, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

// Reply 发起一次对话补全，上游错误统一转换为推理失败
func (s *DefaultChatService) Reply(ctx context.Context, message string) (string, error) {
	reply, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: s.systemPrompt},
		{Role: "user", Content: message},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", apierr.Inference(err)
	}
	return strings.TrimSpace(reply), nil
}
