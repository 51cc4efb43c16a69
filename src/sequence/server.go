package sequence

import (
	"context"
	"net/http"

	"signsense-server-go/src/core/apierr"
	"signsense-server-go/src/core/image"
	"signsense-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// DefaultSequenceService 多帧识别 HTTP 服务
type DefaultSequenceService struct {
	service        *Service
	logger         *utils.TaggedLogger
	maxRequestSize int64
}

// NewDefaultSequenceService 构造函数
func NewDefaultSequenceService(service *Service, maxRequestSize int64, logger *utils.Logger) *DefaultSequenceService {
	return &DefaultSequenceService{
		service:        service,
		logger:         logger.WithTag("sequence"),
		maxRequestSize: maxRequestSize,
	}
}

// Start 实现 SequenceService 接口，注册路由
func (s *DefaultSequenceService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	apiGroup.POST("/sign-sequence/", s.handlePost)

	s.logger.Info("Sequence HTTP服务路由注册完成")
	return nil
}

// handlePost 处理多帧上传
func (s *DefaultSequenceService) handlePost(c *gin.Context) {
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

	s.logger.Debug("收到帧序列", map[string]interface{}{
		"request_id": c.GetString("request_id"),
		"files":      len(files),
	})

	text, err := s.service.HandleSequencePredict(c.Request.Context(), files)
	if err != nil {
		apierr.Respond(c, s.logger, err)
		return
	}

	c.JSON(http.StatusOK, SequenceResponse{Text: text})
}
