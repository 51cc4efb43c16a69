package remote

import (
	"context"
	"encoding/json"
	stdimage "image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"signsense-server-go/src/core/image"
	"signsense-server-go/src/core/providers/predictor"
	"signsense-server-go/src/core/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrames(n int) image.FrameSequence {
	seq := make(image.FrameSequence, n)
	for i := range seq {
		seq[i] = image.DecodedImage{Width: 2, Height: 1 + i, Image: stdimage.NewGray(stdimage.Rect(0, 0, 2, 1+i))}
	}
	return seq
}

func newTestProvider(t *testing.T, url string) predictor.Provider {
	t.Helper()
	p, err := NewProvider(&predictor.Config{
		Type:    "remote",
		BaseURL: url,
		APIKey:  "secret",
		Timeout: 5 * time.Second,
	}, utils.NewNopLogger())
	require.NoError(t, err)
	return p
}

func TestPredictUploadsFramesInOrder(t *testing.T) {
	var heights []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		for _, fh := range r.MultipartForm.File["files"] {
			assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))
			f, err := fh.Open()
			require.NoError(t, err)
			img, err := png.Decode(f)
			f.Close()
			require.NoError(t, err)
			heights = append(heights, img.Bounds().Dy())
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(PredictResponse{Text: "HELLO WORLD"})
	}))
	defer srv.Close()

	text, err := newTestProvider(t, srv.URL).Predict(context.Background(), testFrames(4))
	require.NoError(t, err)
	assert.Equal(t, "HELLO WORLD", text)
	assert.Equal(t, []int{1, 2, 3, 4}, heights)
}

func TestPredictErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "服务端错误", status: http.StatusInternalServerError, body: "Traceback", wantErr: "500"},
		{name: "响应不是JSON", status: http.StatusOK, body: "<html>", wantErr: "解析"},
		{name: "业务错误", status: http.StatusOK, body: `{"error":"no hands detected"}`, wantErr: "no hands detected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestProvider(t, srv.URL).Predict(context.Background(), testFrames(1))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPredictCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestProvider(t, srv.URL).Predict(ctx, testFrames(1))
	assert.Error(t, err)
}

func TestNewProviderRequiresURL(t *testing.T) {
	_, err := NewProvider(&predictor.Config{}, utils.NewNopLogger())
	assert.Error(t, err)
}
