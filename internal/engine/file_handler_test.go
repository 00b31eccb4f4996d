package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader-backend/internal/engine"
	"reader-backend/internal/storage"
	"reader-backend/internal/store"
)

func newFileApp(t *testing.T, maxSize int64) *fiber.App {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "files.db"), 0)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))

	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	engine.RegisterFileRoutes(app, engine.NewFileHandler(s, storage.NewLocalStorage(t.TempDir()), maxSize))
	return app
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename, mimeType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func do(t *testing.T, app *fiber.App, method, path string, body io.Reader, contentType string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestFileLifecycle(t *testing.T) {
	app := newFileApp(t, 0)
	img := pngBytes(t, 4, 3)

	body, ct := uploadRequest(t, "dot.png", "image/png", img)
	status, data := do(t, app, "POST", "/api/files", body, ct)
	require.Equal(t, 201, status, string(data))

	var uploaded struct {
		Data struct {
			ID       string `json:"id"`
			Filename string `json:"filename"`
			MimeType string `json:"mime_type"`
			Width    int    `json:"width"`
			Height   int    `json:"height"`
			URL      string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &uploaded))
	assert.Equal(t, "dot.png", uploaded.Data.Filename)
	assert.Equal(t, "image/png", uploaded.Data.MimeType)
	assert.Equal(t, 4, uploaded.Data.Width)
	assert.Equal(t, 3, uploaded.Data.Height)
	assert.Equal(t, "/files/"+uploaded.Data.ID, uploaded.Data.URL)

	req := httptest.NewRequest("GET", uploaded.Data.URL, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	served, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, img, served)

	status, data = do(t, app, "GET", "/api/files", nil, "")
	require.Equal(t, 200, status)
	var list struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, uploaded.Data.ID, list.Data[0]["id"])

	status, data = do(t, app, "DELETE", "/api/files/"+uploaded.Data.ID, nil, "")
	require.Equal(t, 200, status, string(data))
	assert.JSONEq(t, `{"data":{"deleted":true}}`, string(data))

	status, _ = do(t, app, "GET", uploaded.Data.URL, nil, "")
	assert.Equal(t, 404, status)
	status, _ = do(t, app, "DELETE", "/api/files/"+uploaded.Data.ID, nil, "")
	assert.Equal(t, 404, status)
}

func TestFileListEmpty(t *testing.T) {
	app := newFileApp(t, 0)
	status, data := do(t, app, "GET", "/api/files", nil, "")
	require.Equal(t, 200, status)
	assert.JSONEq(t, `{"data":[]}`, string(data))
}

func TestFileUploadRejects(t *testing.T) {
	app := newFileApp(t, 16)

	var empty bytes.Buffer
	mw := multipart.NewWriter(&empty)
	require.NoError(t, mw.WriteField("title", "no file"))
	require.NoError(t, mw.Close())
	status, data := do(t, app, "POST", "/api/files", &empty, mw.FormDataContentType())
	assert.Equal(t, 400, status)
	assert.Contains(t, string(data), "INVALID_PAYLOAD")

	body, ct := uploadRequest(t, "big.png", "image/png", pngBytes(t, 8, 8))
	status, data = do(t, app, "POST", "/api/files", body, ct)
	assert.Equal(t, 413, status)
	assert.Contains(t, string(data), "FILE_TOO_LARGE")

	status, data = do(t, app, "GET", "/files/unknown", nil, "")
	assert.Equal(t, 404, status)
	assert.Contains(t, string(data), "NOT_FOUND")
}
