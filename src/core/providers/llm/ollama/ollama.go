package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"signsense-server-go/src/core/providers/llm"

	"github.com/sashabaranov/go-openai"
)

// Provider Ollama LLM提供者，走 OpenAI 兼容的 /v1 接口
type Provider struct {
	*llm.BaseProvider
	client    *openai.Client
	modelName string
	isQwen3   bool
}

// 注册提供者
func init() {
	llm.Register("ollama", NewProvider)
}

// NewProvider 创建Ollama提供者
func NewProvider(config *llm.Config) (llm.Provider, error) {
	base := llm.NewBaseProvider(config)
	provider := &Provider{
		BaseProvider: base,
		modelName:    config.ModelName,
	}

	// 检查是否是qwen3模型
	provider.isQwen3 = config.ModelName != "" && strings.HasPrefix(strings.ToLower(config.ModelName), "qwen3")

	return provider, nil
}

// Initialize 初始化提供者
func (p *Provider) Initialize() error {
	config := p.Config()
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		return fmt.Errorf("缺少Ollama基础URL配置")
	}

	// 确保URL以/v1结尾
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL = baseURL + "/v1"
	}

	// Ollama不需要真正的API key，但openai客户端需要一个值
	clientConfig := openai.DefaultConfig("ollama")
	clientConfig.BaseURL = baseURL

	p.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

// Chat 单次对话补全
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	// qwen3 默认会输出思考过程，在最后一条用户消息里关掉
	if p.isQwen3 {
		for i := len(chatMessages) - 1; i >= 0; i-- {
			if chatMessages[i].Role == openai.ChatMessageRoleUser {
				chatMessages[i].Content += " /no_think"
				break
			}
		}
	}

	resp, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:    p.modelName,
			Messages: chatMessages,
		},
	)
	if err != nil {
		return "", fmt.Errorf("Ollama服务响应异常: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("Ollama服务没有返回结果")
	}

	return llm.StripThinkTags(resp.Choices[0].Message.Content), nil
}
