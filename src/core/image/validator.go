package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"signsense-server-go/src/configs"
	"signsense-server-go/src/core/apierr"
	"signsense-server-go/src/core/utils"

	_ "image/gif"  // 注册GIF解码器
	_ "image/jpeg" // 注册JPEG解码器
	_ "image/png"  // 注册PNG解码器

	_ "golang.org/x/image/bmp"  // 注册BMP解码器
	_ "golang.org/x/image/tiff" // 注册TIFF解码器
	_ "golang.org/x/image/webp" // 注册WEBP解码器
)

// ImageSecurityValidator 图片安全验证器
type ImageSecurityValidator struct {
	config *configs.SecurityConfig
	logger *utils.Logger
}

// NewImageSecurityValidator 创建新的图片安全验证器
func NewImageSecurityValidator(config *configs.SecurityConfig, logger *utils.Logger) *ImageSecurityValidator {
	return &ImageSecurityValidator{
		config: config,
		logger: logger,
	}
}

// ValidateFrame 在完整解码之前检查大小、格式和尺寸
func (v *ImageSecurityValidator) ValidateFrame(frame UploadedFrame) (ValidationResult, error) {
	result := ValidationResult{FileSize: int64(len(frame.Data))}

	// 1. 基础大小检查
	if len(frame.Data) == 0 {
		return result, apierr.Invalid(frame.Name, "file is empty")
	}
	if v.config.MaxFileSize > 0 && result.FileSize > v.config.MaxFileSize {
		v.logger.Warn("检测到超大文件", map[string]interface{}{
			"file":     frame.Name,
			"size":     result.FileSize,
			"max_size": v.config.MaxFileSize,
		})
		return result, apierr.Invalid(frame.Name, "file exceeds %d bytes", v.config.MaxFileSize)
	}

	// 2. 只读取头部信息，避免先分配大块像素内存
	config, format, err := image.DecodeConfig(bytes.NewReader(frame.Data))
	if err != nil {
		v.logger.Debug("图片头解析失败", map[string]interface{}{
			"file":          frame.Name,
			"content_type":  frame.ContentType,
			"actual_header": fmt.Sprintf("%x", frame.Data[:min(len(frame.Data), 16)]),
		})
		return result, apierr.Unsupported(frame.Name, err)
	}
	result.Format = format

	// 3. 格式支持检查
	if !v.isFormatAllowed(format) {
		return result, apierr.Unsupported(frame.Name, fmt.Errorf("format %s not allowed", format))
	}

	// 4. 尺寸限制
	if config.Width <= 0 || config.Height <= 0 {
		return result, apierr.Unsupported(frame.Name, fmt.Errorf("invalid dimensions %dx%d", config.Width, config.Height))
	}
	if config.Width > v.config.MaxWidth || config.Height > v.config.MaxHeight {
		return result, apierr.Invalid(frame.Name, "image is %dx%d, max allowed %dx%d",
			config.Width, config.Height, v.config.MaxWidth, v.config.MaxHeight)
	}
	totalPixels := int64(config.Width) * int64(config.Height)
	if v.config.MaxPixels > 0 && totalPixels > v.config.MaxPixels {
		return result, apierr.Invalid(frame.Name, "image has %d pixels, max allowed %d", totalPixels, v.config.MaxPixels)
	}

	result.Width = config.Width
	result.Height = config.Height
	return result, nil
}

// isFormatAllowed 检查格式是否被允许
func (v *ImageSecurityValidator) isFormatAllowed(format string) bool {
	if len(v.config.AllowedFormats) == 0 {
		return true
	}
	formatLower := strings.ToLower(format)
	for _, allowedFormat := range v.config.AllowedFormats {
		allowed := strings.ToLower(allowedFormat)
		if allowed == "jpg" {
			allowed = "jpeg"
		}
		if allowed == formatLower {
			return true
		}
	}
	return false
}
