package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"signsense-server-go/src/configs"
)

// Message 对话消息结构
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config LLM配置结构
type Config struct {
	Type         string
	ModelName    string
	BaseURL      string
	APIKey       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Extra        map[string]interface{}
}

// Provider LLM提供者接口，Chat 返回完整回复
type Provider interface {
	Initialize() error
	Cleanup() error
	Chat(ctx context.Context, messages []Message) (string, error)
}

// BaseProvider LLM基础实现
type BaseProvider struct {
	config *Config
}

// Config 获取配置
func (p *BaseProvider) Config() *Config {
	return p.config
}

// NewBaseProvider 创建LLM基础提供者
func NewBaseProvider(config *Config) *BaseProvider {
	return &BaseProvider{
		config: config,
	}
}

// Initialize 初始化提供者
func (p *BaseProvider) Initialize() error {
	return nil
}

// Cleanup 清理资源
func (p *BaseProvider) Cleanup() error {
	return nil
}

// Factory LLM工厂函数类型
type Factory func(config *Config) (Provider, error)

var (
	factories = make(map[string]Factory)
)

// Register 注册LLM提供者工厂
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Create 按配置中的 type 创建并初始化LLM提供者
func Create(cfg configs.LLMConfig) (Provider, error) {
	config := &Config{
		Type:         strings.ToLower(cfg.Type),
		ModelName:    cfg.ModelName,
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		SystemPrompt: cfg.SystemPrompt,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		Extra:        cfg.Extra,
	}

	factory, ok := factories[config.Type]
	if !ok {
		return nil, fmt.Errorf("未知的LLM提供者: %s", cfg.Type)
	}

	provider, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("创建LLM提供者失败: %w", err)
	}

	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("初始化LLM提供者失败: %w", err)
	}

	return provider, nil
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinkTags 去掉推理模型输出中的 <think> 段落
func StripThinkTags(content string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(content, ""))
}
