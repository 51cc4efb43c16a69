package static

import (
	"context"

	"signsense-server-go/src/core/image"
	"signsense-server-go/src/core/providers/predictor"
	"signsense-server-go/src/core/utils"
)

// DefaultLabel 未配置时返回的固定结果
const DefaultLabel = "V"

// Provider 返回固定结果的预测器，用于前端联调
type Provider struct {
	*predictor.BaseProvider
	label string
}

func init() {
	predictor.Register("static", NewProvider)
}

// NewProvider 创建固定结果预测器
func NewProvider(config *predictor.Config, logger *utils.Logger) (predictor.Provider, error) {
	label := config.Label
	if label == "" {
		label = DefaultLabel
	}
	return &Provider{
		BaseProvider: predictor.NewBaseProvider(config),
		label:        label,
	}, nil
}

// Predict 忽略帧内容，直接返回固定结果
func (p *Provider) Predict(ctx context.Context, frames image.FrameSequence) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.label, nil
}
