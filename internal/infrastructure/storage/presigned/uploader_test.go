package presigned

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

func TestUploadPutsBytesWithHeaders(t *testing.T) {
	var method, contentType, disposition, body string
	var length int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		disposition = r.Header.Get("Content-Disposition")
		length = r.ContentLength
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	file := domain.FileDescriptor{Name: "my diagram.png", MimeType: "image/png", SizeBytes: 5}
	if err := New(time.Second).Upload(context.Background(), server.URL+"/put?sig=abc", file, strings.NewReader("bytes")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if method != http.MethodPut || contentType != "image/png" || length != 5 || body != "bytes" {
		t.Fatalf("unexpected request %s %s %d %q", method, contentType, length, body)
	}
	if disposition != `attachment; filename="my diagram.png"` {
		t.Fatalf("unexpected disposition %q", disposition)
	}
}

func TestUploadReportsStorageRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "SignatureDoesNotMatch", http.StatusForbidden)
	}))
	defer server.Close()

	err := New(time.Second).Upload(context.Background(), server.URL, domain.FileDescriptor{Name: "a.pdf"}, strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "SignatureDoesNotMatch") || !strings.Contains(err.Error(), "a.pdf") {
		t.Fatalf("expected storage error, got %v", err)
	}
}
