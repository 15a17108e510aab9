package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash/crc64"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// newFileHeader 构造上传文件，contentType 为空时不设置类型
func newFileHeader(t *testing.T, filename, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func newTestUploadService(t *testing.T, maxSize int64) (*UploadService, string) {
	t.Helper()
	dir := t.TempDir()
	svc := NewUploadService(&config.UploadConfig{MaxSize: maxSize}, NewLocalStorage(dir))
	svc.baseURL = func() string { return testBaseURL }
	return svc, dir
}

func TestUploadStoresByHash(t *testing.T) {
	svc, dir := newTestUploadService(t, 1<<20)

	resp, err := svc.Upload(context.Background(), newFileHeader(t, "logo.png", "image/png", pngHeader))
	require.NoError(t, err)

	sum := sha256.Sum256(pngHeader)
	want := hex.EncodeToString(sum[:]) + ".png"
	assert.Equal(t, want, resp.Filename)
	assert.Equal(t, testBaseURL+"/"+want, resp.URL)

	stored, err := os.ReadFile(filepath.Join(dir, want))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUploadReusesExistingFile(t *testing.T) {
	svc, dir := newTestUploadService(t, 1<<20)
	ctx := context.Background()

	first, err := svc.Upload(ctx, newFileHeader(t, "a.png", "image/png", pngHeader))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, newFileHeader(t, "b.png", "image/png", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUploadDetectsContentType(t *testing.T) {
	svc, _ := newTestUploadService(t, 1<<20)

	resp, err := svc.Upload(context.Background(), newFileHeader(t, "noext", "", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(resp.Filename))

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	resp, err = svc.Upload(context.Background(), newFileHeader(t, "icon.svg", "image/svg+xml", svg))
	require.NoError(t, err)
	assert.Equal(t, ".svg", filepath.Ext(resp.Filename))
}

func TestUploadRejects(t *testing.T) {
	svc, dir := newTestUploadService(t, 8)
	ctx := context.Background()

	_, err := svc.Upload(ctx, newFileHeader(t, "big.png", "image/png", pngHeader))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	svc, dir = newTestUploadService(t, 1<<20)
	_, err = svc.Upload(ctx, newFileHeader(t, "a.txt", "", []byte("plain text")))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = svc.Upload(ctx, newFileHeader(t, "empty.png", "image/png", nil))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadAllowedTypesConfig(t *testing.T) {
	svc := NewUploadService(&config.UploadConfig{AllowedTypes: []string{"image/jpeg"}}, NewLocalStorage(t.TempDir()))

	_, err := svc.Upload(context.Background(), newFileHeader(t, "a.png", "image/png", pngHeader))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestNewStorage(t *testing.T) {
	storage, err := NewStorage(&config.UploadConfig{Storage: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, storage)

	_, err = NewStorage(&config.UploadConfig{Storage: "ftp"})
	assert.Error(t, err)

	_, err = NewStorage(&config.UploadConfig{Storage: "cos"})
	assert.Error(t, err)
}

func TestCOSStorage(t *testing.T) {
	var (
		mu      sync.Mutex
		objects = map[string][]byte{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodHead:
			if _, ok := objects[r.URL.Path]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			buf := &bytes.Buffer{}
			_, _ = buf.ReadFrom(r.Body)
			objects[r.URL.Path] = buf.Bytes()
			// SDK默认校验返回的CRC64
			sum := crc64.Checksum(buf.Bytes(), crc64.MakeTable(crc64.ECMA))
			w.Header().Set("x-cos-hash-crc64ecma", strconv.FormatUint(sum, 10))
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	storage, err := NewCOSStorage(&config.COSStorage{BucketURL: server.URL, Prefix: "/icons/", SecretID: "id", SecretKey: "key"})
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := storage.Exists(ctx, "a.png")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, storage.Put(ctx, "a.png", pngHeader, "image/png"))
	assert.Equal(t, pngHeader, objects["/icons/a.png"])

	exists, err = storage.Exists(ctx, "a.png")
	require.NoError(t, err)
	assert.True(t, exists)
}
