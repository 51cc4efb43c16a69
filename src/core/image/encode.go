package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// EncodeFrame 把解码后的帧重新编码为 jpeg 或 png，供远程预测器使用。
// maxEdge > 0 时按比例缩小到最长边不超过 maxEdge。
func EncodeFrame(frame DecodedImage, format string, maxEdge int) ([]byte, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("帧没有像素数据")
	}
	img := Downscale(frame.Image, maxEdge)

	var buf bytes.Buffer
	switch format {
	case "jpeg", "jpg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, fmt.Errorf("JPEG编码失败: %w", err)
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("PNG编码失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的编码格式: %s", format)
	}
	return buf.Bytes(), nil
}

// EncodeFrameBase64 编码并转换为 base64
func EncodeFrameBase64(frame DecodedImage, format string, maxEdge int) (string, error) {
	data, err := EncodeFrame(frame, format, maxEdge)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DataURL 生成 data:image/...;base64 形式的地址
func DataURL(format, base64Data string) string {
	if format == "jpg" {
		format = "jpeg"
	}
	return fmt.Sprintf("data:image/%s;base64,%s", format, base64Data)
}

// Downscale 最长边超过 maxEdge 时等比缩小，否则原样返回
func Downscale(img image.Image, maxEdge int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}

	nw, nh := maxEdge, maxEdge
	if w >= h {
		nh = max(1, h*maxEdge/w)
	} else {
		nw = max(1, w*maxEdge/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
