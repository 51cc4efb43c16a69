package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"signsense-server-go/src/core/image"
	"signsense-server-go/src/core/providers/predictor"
	"signsense-server-go/src/core/utils"

	"github.com/sashabaranov/go-openai"
)

const defaultMaxEdge = 512

// Provider 通过 OpenAI 兼容的视觉对话接口识别帧序列
type Provider struct {
	*predictor.BaseProvider
	client *openai.Client
	logger *utils.Logger
}

func init() {
	predictor.Register("openai", NewProvider)
}

// NewProvider 创建OpenAI视觉预测器
func NewProvider(config *predictor.Config, logger *utils.Logger) (predictor.Provider, error) {
	if config.ModelName == "" {
		return nil, fmt.Errorf("OpenAI预测器缺少 model_name")
	}
	return &Provider{
		BaseProvider: predictor.NewBaseProvider(config),
		logger:       logger,
	}, nil
}

// Initialize 初始化客户端
func (p *Provider) Initialize() error {
	config := p.Config()
	if config.APIKey == "" {
		return fmt.Errorf("missing OpenAI API key")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	p.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

// Predict 把所有帧按顺序放进一条用户消息，返回模型回复
func (p *Provider) Predict(ctx context.Context, frames image.FrameSequence) (string, error) {
	config := p.Config()
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	maxEdge := config.MaxEdge
	if maxEdge == 0 {
		maxEdge = defaultMaxEdge
	}

	parts := make([]openai.ChatMessagePart, 0, len(frames)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: config.Prompt,
	})
	for i, frame := range frames {
		b64, err := image.EncodeFrameBase64(frame, "jpeg", maxEdge)
		if err != nil {
			return "", fmt.Errorf("编码第%d帧失败: %w", i, err)
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    image.DataURL("jpeg", b64),
				Detail: openai.ImageURLDetailLow,
			},
		})
	}

	req := openai.ChatCompletionRequest{
		Model: config.ModelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		Temperature: float32(config.Temperature),
	}
	if config.MaxTokens > 0 {
		req.MaxTokens = config.MaxTokens
	}

	p.logger.Debug("调用OpenAI视觉接口", map[string]interface{}{
		"model":  config.ModelName,
		"frames": len(frames),
	})

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI视觉接口调用失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI视觉接口没有返回结果")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
