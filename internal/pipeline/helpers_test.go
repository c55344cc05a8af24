package pipeline_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func batchOf(keys ...string) *domain.UploadEventBatch {
	batch := &domain.UploadEventBatch{}
	for _, k := range keys {
		batch.Records = append(batch.Records, domain.UploadRecord{BucketObjectKey: k})
	}
	return batch
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func taskRecord(owner, task string) *domain.TaskRecord {
	return &domain.TaskRecord{OwnerID: owner, TaskID: task, Name: "write report"}
}
