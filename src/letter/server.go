// Package letter 提供单帧字母识别接口，复用多帧识别流水线
package letter

import (
	"context"
	"net/http"

	"signsense-server-go/src/core/apierr"
	"signsense-server-go/src/core/image"
	"signsense-server-go/src/core/utils"
	"signsense-server-go/src/sequence"

	"github.com/gin-gonic/gin"
)

// FormField 单帧上传的 multipart 字段名
const FormField = "file"

// LetterResponse 单帧识别响应
type LetterResponse struct {
	Prediction string `json:"prediction"`
}

// DefaultLetterService 单帧识别 HTTP 服务
type DefaultLetterService struct {
	service        *sequence.Service
	logger         *utils.TaggedLogger
	maxRequestSize int64
}

// NewDefaultLetterService 构造函数，service 使用字母预测器构建
func NewDefaultLetterService(service *sequence.Service, maxRequestSize int64, logger *utils.Logger) *DefaultLetterService {
	return &DefaultLetterService{
		service:        service,
		logger:         logger.WithTag("letter"),
		maxRequestSize: maxRequestSize,
	}
}

// Start 注册 /predict/ 路由，挂在根路径而不是 apiGroup 下
func (s *DefaultLetterService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	engine.POST("/predict/", s.handlePost)

	s.logger.Info("Letter HTTP服务路由注册完成")
	return nil
}

func (s *DefaultLetterService) handlePost(c *gin.Context) {
	if s.maxRequestSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxRequestSize)
	}

	form, err := c.MultipartForm()
	if err != nil {
		apierr.Respond(c, s.logger, image.FormError(err, s.maxRequestSize))
		return
	}

	files, err := image.ReadMultipartFrames(form, FormField)
	if err != nil {
		apierr.Respond(c, s.logger, err)
		return
	}
	if len(files) != 1 {
		apierr.Respond(c, s.logger, apierr.Invalid("", "exactly one file expected, got %d", len(files)))
		return
	}

	prediction, err := s.service.HandleSequencePredict(c.Request.Context(), files)
	if err != nil {
		apierr.Respond(c, s.logger, err)
		return
	}

	c.JSON(http.StatusOK, LetterResponse{Prediction: prediction})
}
