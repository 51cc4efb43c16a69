package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"signsense-server-go/src/core/image"
	"signsense-server-go/src/core/providers/predictor"
	"signsense-server-go/src/core/utils"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultMaxEdge = 512
)

// ChatRequest Ollama API请求结构
type ChatRequest struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// Message Ollama消息结构
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // 纯base64，不带data URL前缀
}

// ChatResponse Ollama API响应结构（非流式）
type ChatResponse struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// Provider 通过 Ollama 多模态对话接口识别帧序列
type Provider struct {
	*predictor.BaseProvider
	client *resty.Client
	logger *utils.Logger
}

func init() {
	predictor.Register("ollama", NewProvider)
}

// NewProvider 创建Ollama预测器
func NewProvider(config *predictor.Config, logger *utils.Logger) (predictor.Provider, error) {
	if config.ModelName == "" {
		return nil, fmt.Errorf("Ollama预测器缺少 model_name")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(config.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(config.Timeout)

	return &Provider{
		BaseProvider: predictor.NewBaseProvider(config),
		client:       client,
		logger:       logger,
	}, nil
}

// Predict 调用 /api/chat，帧按顺序放进 images
func (p *Provider) Predict(ctx context.Context, frames image.FrameSequence) (string, error) {
	config := p.Config()
	maxEdge := config.MaxEdge
	if maxEdge == 0 {
		maxEdge = defaultMaxEdge
	}

	images := make([]string, 0, len(frames))
	for i, frame := range frames {
		b64, err := image.EncodeFrameBase64(frame, "jpeg", maxEdge)
		if err != nil {
			return "", fmt.Errorf("编码第%d帧失败: %w", i, err)
		}
		images = append(images, b64)
	}

	request := ChatRequest{
		Model: config.ModelName,
		Messages: []Message{
			{Role: "user", Content: config.Prompt, Images: images},
		},
		Stream: false,
		Options: map[string]interface{}{
			"temperature": config.Temperature,
		},
	}

	p.logger.Debug("向Ollama发送多模态请求", map[string]interface{}{
		"url":    config.BaseURL,
		"model":  config.ModelName,
		"frames": len(frames),
	})

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(request).
		Post("/api/chat")
	if err != nil {
		return "", fmt.Errorf("Ollama API调用失败: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("Ollama API返回错误: %d %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var result ChatResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("解析Ollama响应失败: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("Ollama返回错误: %s", result.Error)
	}
	return strings.TrimSpace(result.Message.Content), nil
}
