package predictor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"signsense-server-go/src/configs"
	"signsense-server-go/src/core/image"
	"signsense-server-go/src/core/metrics"
	"signsense-server-go/src/core/utils"
)

// Predictor 外部预测器能力：输入有序帧序列，返回文本结果。
// 实现必须可以被多个请求并发调用。
type Predictor interface {
	Predict(ctx context.Context, frames image.FrameSequence) (string, error)
}

// Provider 带生命周期的预测器
type Provider interface {
	Predictor
	Initialize() error
	Cleanup() error
}

// Config 预测器配置结构
type Config struct {
	Name        string
	Type        string
	Label       string
	ModelName   string
	BaseURL     string
	APIKey      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	MaxEdge     int
	Timeout     time.Duration
	Extra       map[string]interface{}
}

// DefaultPrompt 视觉模型的默认指令
const DefaultPrompt = "The images are consecutive frames of a person signing, in the order they were captured. " +
	"Reply with only the text being signed, without any explanation."

// BaseProvider 预测器基础实现
type BaseProvider struct {
	config *Config
}

// NewBaseProvider 创建预测器基础提供者
func NewBaseProvider(config *Config) *BaseProvider {
	return &BaseProvider{config: config}
}

// Config 获取配置
func (p *BaseProvider) Config() *Config {
	return p.config
}

// Initialize 初始化提供者
func (p *BaseProvider) Initialize() error {
	return nil
}

// Cleanup 清理资源
func (p *BaseProvider) Cleanup() error {
	return nil
}

// Factory 预测器工厂函数类型
type Factory func(config *Config, logger *utils.Logger) (Provider, error)

var (
	factories = make(map[string]Factory)
)

// Register 注册预测器工厂
func Register(name string, factory Factory) {
	factories[name] = factory
}

// NewConfig 把 YAML 配置转换为预测器配置
func NewConfig(name string, cfg configs.PredictorConfig) (*Config, error) {
	config := &Config{
		Name:        name,
		Type:        strings.ToLower(cfg.Type),
		Label:       cfg.Label,
		ModelName:   cfg.ModelName,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Prompt:      cfg.Prompt,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		MaxEdge:     cfg.MaxEdge,
		Timeout:     30 * time.Second,
		Extra:       cfg.Extra,
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("预测器 %s 超时配置无效: %w", name, err)
		}
		config.Timeout = d
	}
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	return config, nil
}

// Create 创建并初始化预测器实例，name 是配置中的名称，工厂按 type 选择
func Create(name string, cfg configs.PredictorConfig, logger *utils.Logger) (Provider, error) {
	config, err := NewConfig(name, cfg)
	if err != nil {
		return nil, err
	}

	factory, ok := factories[config.Type]
	if !ok {
		return nil, fmt.Errorf("未知的预测器类型: %q", cfg.Type)
	}

	provider, err := factory(config, logger)
	if err != nil {
		return nil, fmt.Errorf("创建预测器失败: %w", err)
	}

	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("初始化预测器失败: %w", err)
	}

	logger.Debug("预测器创建成功", map[string]interface{}{
		"name":       name,
		"type":       config.Type,
		"model_name": config.ModelName,
	})
	return provider, nil
}

// GetRegisteredProviders 获取已注册的预测器类型
func GetRegisteredProviders() []string {
	var names []string
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// instrumented 记录调用耗时与失败次数
type instrumented struct {
	Provider
	name string
}

// WithMetrics 为预测器加上 Prometheus 统计
func WithMetrics(name string, p Provider) Provider {
	return &instrumented{Provider: p, name: name}
}

func (p *instrumented) Predict(ctx context.Context, frames image.FrameSequence) (string, error) {
	start := time.Now()
	text, err := p.Provider.Predict(ctx, frames)
	metrics.PredictDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PredictFailures.WithLabelValues(p.name).Inc()
	}
	return text, err
}
