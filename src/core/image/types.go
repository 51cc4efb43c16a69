package image

import (
	"image"
)

// UploadedFrame 上传的单帧原始数据，只在一次请求内有效
type UploadedFrame struct {
	Name        string // 客户端文件名
	ContentType string // 声明的 Content-Type
	Data        []byte
}

// DecodedImage 解码后的像素缓冲，归单次请求独占
type DecodedImage struct {
	Width    int
	Height   int
	Channels int    // 1 灰度，3 彩色，4 带透明通道
	Format   string // 实际解码格式：jpeg, png, gif, bmp, tiff, webp
	Image    image.Image
}

// FrameSequence 按上传顺序排列的帧序列
type FrameSequence []DecodedImage

// ValidationResult 图片验证结果
type ValidationResult struct {
	Format   string // 实际格式
	Width    int    // 图片宽度
	Height   int    // 图片高度
	FileSize int64  // 文件大小
}
