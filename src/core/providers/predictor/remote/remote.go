// Package remote 把帧序列转发给独立部署的模型服务。
//
// 模型服务接收 multipart 请求，字段 files 按顺序携带 PNG 帧，
// 返回 {"text": "..."}。
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"signsense-server-go/src/core/image"
	"signsense-server-go/src/core/providers/predictor"
	"signsense-server-go/src/core/utils"

	"github.com/go-resty/resty/v2"
)

// PredictResponse 模型服务响应
type PredictResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Provider 远程模型服务预测器
type Provider struct {
	*predictor.BaseProvider
	client *resty.Client
	logger *utils.Logger
}

func init() {
	predictor.Register("remote", NewProvider)
}

// NewProvider 创建远程预测器
func NewProvider(config *predictor.Config, logger *utils.Logger) (predictor.Provider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("远程预测器缺少 url")
	}
	client := resty.New().SetTimeout(config.Timeout)
	if config.APIKey != "" {
		client.SetAuthToken(config.APIKey)
	}
	return &Provider{
		BaseProvider: predictor.NewBaseProvider(config),
		client:       client,
		logger:       logger,
	}, nil
}

// Predict 以 PNG 重新编码每帧并按顺序上传
func (p *Provider) Predict(ctx context.Context, frames image.FrameSequence) (string, error) {
	config := p.Config()

	fields := make([]*resty.MultipartField, 0, len(frames))
	for i, frame := range frames {
		data, err := image.EncodeFrame(frame, "png", config.MaxEdge)
		if err != nil {
			return "", fmt.Errorf("编码第%d帧失败: %w", i, err)
		}
		fields = append(fields, &resty.MultipartField{
			Param:       "files",
			FileName:    fmt.Sprintf("frame_%04d.png", i),
			ContentType: "image/png",
			Reader:      bytes.NewReader(data),
		})
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetMultipartFields(fields...).
		Post(config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("远程模型服务调用失败: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("远程模型服务返回错误: %d %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var result PredictResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("解析远程模型服务响应失败: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("远程模型服务返回错误: %s", result.Error)
	}

	p.logger.Debug("远程模型服务返回结果", map[string]interface{}{
		"frames": len(frames),
		"text":   result.Text,
	})
	return result.Text, nil
}
