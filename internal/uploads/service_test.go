package uploads

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func multipartRequest(t *testing.T, filename string, content []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/uploads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	file, header, err := req.FormFile("file")
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })
	return file, header
}

func TestStoreWritesFileAndReturnsOpaqueURL(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir, "/files")
	svc.WithNow(func() time.Time {
		return time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	})

	file, header := multipartRequest(t, "bukti-setoran.jpg", []byte("jpeg-bytes"))
	url, err := svc.Store(file, header)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/files/2025/07/10/"), url)
	require.True(t, strings.HasSuffix(url, ".jpg"), url)
	require.NotContains(t, url, "bukti-setoran")

	stored := filepath.Join(dir, strings.TrimPrefix(url, "/files/"))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg-bytes"), data)
}

func TestStoreRejectsUnsupportedType(t *testing.T) {
	svc := NewService(t.TempDir(), "/files")
	file, header := multipartRequest(t, "laporan.pdf", []byte("%PDF"))
	_, err := svc.Store(file, header)
	require.ErrorIs(t, err, ErrUnsupportedType)
}
