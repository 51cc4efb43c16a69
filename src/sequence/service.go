package sequence

import (
	"context"
	"fmt"

	"signsense-server-go/src/core/apierr"
	"signsense-server-go/src/core/image"
	"signsense-server-go/src/core/providers/predictor"
	"signsense-server-go/src/core/utils"
)

// Service 解码帧序列并交给预测器。不持有任何跨请求状态，可并发调用。
type Service struct {
	decoder   *image.Decoder
	predictor predictor.Predictor
	logger    *utils.TaggedLogger
}

// NewService 构造函数，predictor 在进程启动时创建一次后注入
func NewService(decoder *image.Decoder, p predictor.Predictor, logger *utils.Logger) *Service {
	return &Service{
		decoder:   decoder,
		predictor: p,
		logger:    logger.WithTag("sequence"),
	}
}

// HandleSequencePredict 先全部解码再预测，任何一帧失败都不会调用预测器
func (s *Service) HandleSequencePredict(ctx context.Context, files []image.UploadedFrame) (PredictionResult, error) {
	frames, err := s.decoder.DecodeSequence(ctx, files)
	if err != nil {
		return "", err
	}

	s.logger.Debug("帧序列解码完成", map[string]interface{}{
		"frames": len(frames),
	})

	return s.predict(ctx, frames)
}

func (s *Service) predict(ctx context.Context, frames image.FrameSequence) (text PredictionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apierr.Inference(fmt.Errorf("predictor panic: %v", r))
		}
	}()

	text, err = s.predictor.Predict(ctx, frames)
	if err != nil {
		// 客户端已经断开，不再当作推理失败
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", apierr.Inference(err)
	}
	return text, nil
}
