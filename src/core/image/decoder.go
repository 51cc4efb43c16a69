package image

import (
	"bytes"
	"context"
	"image"

	"signsense-server-go/src/configs"
	"signsense-server-go/src/core/apierr"
	"signsense-server-go/src/core/metrics"
	"signsense-server-go/src/core/utils"

	"golang.org/x/sync/errgroup"
)

// Decoder 把上传的帧解码为像素缓冲
type Decoder struct {
	validator      *ImageSecurityValidator
	logger         *utils.Logger
	maxFrames      int
	maxTotalPixels int64
	workers        int
}

// NewDecoder 根据序列配置创建解码器
func NewDecoder(config *configs.SequenceConfig, logger *utils.Logger) *Decoder {
	workers := config.DecodeWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Decoder{
		validator:      NewImageSecurityValidator(&config.Security, logger),
		logger:         logger,
		maxFrames:      config.MaxFrames,
		maxTotalPixels: config.MaxTotalPixels,
		workers:        workers,
	}
}

// DecodeFrame 校验并解码单帧
func (d *Decoder) DecodeFrame(frame UploadedFrame) (DecodedImage, error) {
	info, err := d.validate(frame)
	if err != nil {
		return DecodedImage{}, err
	}
	return d.decode(frame, info)
}

func (d *Decoder) validate(frame UploadedFrame) (ValidationResult, error) {
	info, err := d.validator.ValidateFrame(frame)
	if err != nil {
		metrics.FrameDecodeFailures.WithLabelValues(string(apierr.KindOf(err))).Inc()
	}
	return info, err
}

func (d *Decoder) decode(frame UploadedFrame, info ValidationResult) (DecodedImage, error) {
	img, format, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		// 头部合法但像素数据损坏
		metrics.FrameDecodeFailures.WithLabelValues(string(apierr.UnsupportedMediaType)).Inc()
		return DecodedImage{}, apierr.Unsupported(frame.Name, err)
	}
	metrics.FramesDecoded.WithLabelValues(format).Inc()

	bounds := img.Bounds()
	decoded := DecodedImage{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: channelsOf(img),
		Format:   format,
		Image:    img,
	}

	d.logger.Debug("帧解码完成", map[string]interface{}{
		"file":     frame.Name,
		"format":   decoded.Format,
		"width":    decoded.Width,
		"height":   decoded.Height,
		"channels": decoded.Channels,
		"size":     info.FileSize,
	})
	return decoded, nil
}

// DecodeSequence 先读取所有帧的头部并检查像素总量，再并发解码，结果保持上传顺序。
// 头部检查失败优先于解码失败；同类失败返回上传顺序中最靠前的错误。
func (d *Decoder) DecodeSequence(ctx context.Context, frames []UploadedFrame) (FrameSequence, error) {
	if len(frames) == 0 {
		return nil, apierr.Invalid("", "no files uploaded")
	}
	if d.maxFrames > 0 && len(frames) > d.maxFrames {
		return nil, apierr.Invalid("", "too many files: %d, max allowed %d", len(frames), d.maxFrames)
	}

	infos, err := d.validateAll(frames)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(FrameSequence, len(frames))
	errs := make([]error, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, frame := range frames {
		i, frame := i, frame
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decoded, err := d.decode(frame, infos[i])
			if err != nil {
				errs[i] = err
				return nil
			}
			out[i] = decoded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// validateAll 只解析头部，不分配像素内存。整个序列的像素总和不得超过 maxTotalPixels。
func (d *Decoder) validateAll(frames []UploadedFrame) ([]ValidationResult, error) {
	infos := make([]ValidationResult, len(frames))
	var firstErr error
	var totalPixels int64
	for i, frame := range frames {
		info, err := d.validate(frame)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		infos[i] = info
		totalPixels += int64(info.Width) * int64(info.Height)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	if d.maxTotalPixels > 0 && totalPixels > d.maxTotalPixels {
		d.logger.Warn("帧序列像素总量超限", map[string]interface{}{
			"frames":       len(frames),
			"total_pixels": totalPixels,
			"max_pixels":   d.maxTotalPixels,
		})
		return nil, apierr.Invalid("", "frames have %d pixels in total, max allowed %d", totalPixels, d.maxTotalPixels)
	}
	return infos, nil
}

// channelsOf 按像素模型推断通道数，不透明的 RGBA 视为 3 通道
func channelsOf(img image.Image) int {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.YCbCr, *image.CMYK:
		return 3
	case *image.NYCbCrA:
		return 4
	case interface{ Opaque() bool }:
		if m.Opaque() {
			return 3
		}
		return 4
	default:
		return 4
	}
}
