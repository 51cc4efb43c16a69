package image

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"signsense-server-go/src/core/apierr"
)

// ReadMultipartFrames 按上传顺序读取 field 字段下的全部文件
func ReadMultipartFrames(form *multipart.Form, field string) ([]UploadedFrame, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	frames := make([]UploadedFrame, 0, len(headers))
	for i, header := range headers {
		name := header.Filename
		if name == "" {
			name = fmt.Sprintf("%s[%d]", field, i)
		}
		data, err := readPart(header)
		if err != nil {
			return nil, &apierr.Error{
				Kind:    apierr.InvalidRequest,
				Message: "failed to read uploaded file",
				File:    name,
				Err:     err,
			}
		}
		frames = append(frames, UploadedFrame{
			Name:        name,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return frames, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// FormError 把 multipart 解析错误转换为 InvalidRequest
func FormError(err error, limit int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &apierr.Error{
			Kind:    apierr.InvalidRequest,
			Message: fmt.Sprintf("request body exceeds %d bytes", limit),
			Err:     err,
		}
	}
	return &apierr.Error{
		Kind:    apierr.InvalidRequest,
		Message: "request must be multipart/form-data",
		Err:     err,
	}
}
