package sequence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	goimage "image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"signsense-server-go/src/configs"
	"signsense-server-go/src/core/apierr"
	"signsense-server-go/src/core/image"
	"signsense-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// widthPredictor 把每帧宽度拼成结果，用于校验帧数与顺序
type widthPredictor struct {
	calls atomic.Int32
	err   error
	panic bool
}

func (p *widthPredictor) Predict(ctx context.Context, frames image.FrameSequence) (string, error) {
	p.calls.Add(1)
	if p.panic {
		panic("model exploded")
	}
	if p.err != nil {
		return "", p.err
	}
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = strconv.Itoa(f.Width)
	}
	return strings.Join(parts, ","), nil
}

type upload struct {
	name string
	data []byte
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field string, files []upload) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile(field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func testConfig() *configs.SequenceConfig {
	return &configs.SequenceConfig{
		MaxFrames:      4,
		MaxRequestSize: 1 << 20,
		DecodeWorkers:  2,
		Security: configs.SecurityConfig{
			MaxFileSize:    256 << 10,
			MaxPixels:      1 << 16,
			MaxWidth:       256,
			MaxHeight:      256,
			AllowedFormats: []string{"png", "jpeg"},
		},
	}
}

func newTestRouter(t *testing.T, p *widthPredictor) *gin.Engine {
	t.Helper()
	return newTestRouterWithConfig(t, p, testConfig())
}

func newTestRouterWithConfig(t *testing.T, p *widthPredictor, cfg *configs.SequenceConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := utils.NewNopLogger()
	svc := NewService(image.NewDecoder(cfg, logger), p, logger)
	server := NewDefaultSequenceService(svc, cfg.MaxRequestSize, logger)

	engine := gin.New()
	require.NoError(t, server.Start(context.Background(), engine, engine.Group("/api")))
	return engine
}

func post(t *testing.T, engine *gin.Engine, files []upload) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, FormField, files)
	req := httptest.NewRequest(http.MethodPost, "/api/sign-sequence/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierr.Response {
	t.Helper()
	var resp apierr.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSignSequenceReturnsPredictionInUploadOrder(t *testing.T) {
	p := &widthPredictor{}
	engine := newTestRouter(t, p)

	rec := post(t, engine, []upload{
		{"f0.png", pngBytes(t, 11, 8)},
		{"f1.png", pngBytes(t, 22, 8)},
		{"f2.png", pngBytes(t, 33, 8)},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SequenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "11,22,33", resp.Text)
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestSignSequenceSingleFrame(t *testing.T) {
	p := &widthPredictor{}
	engine := newTestRouter(t, p)

	rec := post(t, engine, []upload{{"only.png", pngBytes(t, 7, 7)}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"text":"7"}`, rec.Body.String())
}

func TestSignSequenceNoFiles(t *testing.T) {
	p := &widthPredictor{}
	engine := newTestRouter(t, p)

	rec := post(t, engine, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierr.InvalidRequest, decodeError(t, rec).Code)
	assert.Zero(t, p.calls.Load())
}

func TestSignSequenceNotMultipart(t *testing.T) {
	p := &widthPredictor{}
	engine := newTestRouter(t, p)

	req := httptest.NewRequest(http.MethodPost, "/api/sign-sequence/", strings.NewReader(`{"files":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, p.calls.Load())
}

func TestSignSequenceTooManyFrames(t *testing.T) {
	p := &widthPredictor{}
	engine := newTestRouter(t, p)

	files := make([]upload, 5)
	for i := range files {
		files[i] = upload{name: "f" + strconv.Itoa(i) + ".png", data: pngBytes(t, 4, 4)}
	}
	rec := post(t, engine, files)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, p.calls.Load())
}

func TestSignSequenceCorruptFrameNamesFile(t *testing.T) {
	p := &widthPredictor{}
	engine := newTestRouter(t, p)

	rec := post(t, engine, []upload{
		{"ok.png", pngBytes(t, 8, 8)},
		{"broken.png", []byte("this is not an image")},
		{"ok2.png", pngBytes(t, 8, 8)},
	})

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, apierr.UnsupportedMediaType, resp.Code)
	assert.Equal(t, "broken.png", resp.File)
	assert.Zero(t, p.calls.Load())
}

func TestSignSequenceOversizedDimensions(t *testing.T) {
	p := &widthPredictor{}
	engine := newTestRouter(t, p)

	rec := post(t, engine, []upload{{"wide.png", pngBytes(t, 300, 2)}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "wide.png", decodeError(t, rec).File)
	assert.Zero(t, p.calls.Load())
}

func TestSignSequenceTotalPixelBudget(t *testing.T) {
	p := &widthPredictor{}
	cfg := testConfig()
	cfg.MaxTotalPixels = 100 * 100
	engine := newTestRouterWithConfig(t, p, cfg)

	// 每帧 6400 像素，单帧合法，两帧合计超出
	rec := post(t, engine, []upload{
		{"a.png", pngBytes(t, 80, 80)},
		{"b.png", pngBytes(t, 80, 80)},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierr.InvalidRequest, decodeError(t, rec).Code)
	assert.Zero(t, p.calls.Load())
}

func TestSignSequenceBodyTooLarge(t *testing.T) {
	p := &widthPredictor{}
	cfg := testConfig()
	cfg.MaxRequestSize = 1024
	engine := newTestRouterWithConfig(t, p, cfg)

	rec := post(t, engine, []upload{{"big.png", bytes.Repeat([]byte{0x89}, 4096)}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, apierr.InvalidRequest, resp.Code)
	assert.Equal(t, "request body exceeds 1024 bytes", resp.Error)
	assert.Zero(t, p.calls.Load())
}

func TestSignSequenceClientGone(t *testing.T) {
	p := &widthPredictor{}
	engine := newTestRouter(t, p)

	body, contentType := multipartBody(t, FormField, []upload{{"a.png", pngBytes(t, 6, 6)}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/sign-sequence/", body).WithContext(ctx)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, apierr.StatusClientClosedRequest, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Zero(t, p.calls.Load())
}

func TestSignSequencePredictorFailureIsOpaque(t *testing.T) {
	tests := []struct {
		name string
		p    *widthPredictor
	}{
		{"error", &widthPredictor{err: errors.New("cuda: out of memory at /opt/model.bin")}},
		{"panic", &widthPredictor{panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestRouter(t, tt.p)

			rec := post(t, engine, []upload{{"a.png", pngBytes(t, 5, 5)}})

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, apierr.InferenceFailure, resp.Code)
			assert.Equal(t, "inference failed", resp.Error)
			assert.NotContains(t, rec.Body.String(), "cuda")
			assert.NotContains(t, rec.Body.String(), "exploded")
		})
	}
}

func TestSignSequenceConcurrentRequestsAreIndependent(t *testing.T) {
	p := &widthPredictor{}
	engine := newTestRouter(t, p)

	const n = 16
	bodies := make([]*bytes.Buffer, n)
	contentTypes := make([]string, n)
	for i := 0; i < n; i++ {
		w := i + 1
		bodies[i], contentTypes[i] = multipartBody(t, FormField, []upload{
			{"a.png", pngBytes(t, w, 3)},
			{"b.png", pngBytes(t, w+100, 3)},
		})
	}

	var wg sync.WaitGroup
	results := make([]string, n)
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/sign-sequence/", bodies[i])
			req.Header.Set("Content-Type", contentTypes[i])
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)
			codes[i] = rec.Code
			var resp SequenceResponse
			_ = json.Unmarshal(rec.Body.Bytes(), &resp)
			results[i] = resp.Text
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		w := i + 1
		assert.Equal(t, http.StatusOK, codes[i])
		assert.Equal(t, strconv.Itoa(w)+","+strconv.Itoa(w+100), results[i])
	}
	assert.EqualValues(t, n, p.calls.Load())
}

func TestHandleSequencePredictCanceledContext(t *testing.T) {
	p := &widthPredictor{err: errors.New("upstream aborted")}
	logger := utils.NewNopLogger()
	cfg := testConfig()
	svc := NewService(image.NewDecoder(cfg, logger), p, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.HandleSequencePredict(ctx, []image.UploadedFrame{{Name: "a.png", Data: pngBytes(t, 4, 4)}})

	require.Error(t, err)
	assert.True(t, apierr.IsCanceled(err))
}
