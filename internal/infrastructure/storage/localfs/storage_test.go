package localfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// minimalPDF builds a one-page document with a valid cross-reference table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestDescribeDetectsContentType(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Diagram.PNG", pngHeader)
	writeFile(t, dir, "notes.txt", []byte("plain notes"))

	src, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	png, err := src.Describe(context.Background(), "Diagram.PNG")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if png.MimeType != "image/png" || png.Extension != "png" || png.SizeBytes != int64(len(pngHeader)) {
		t.Fatalf("unexpected descriptor %+v", png)
	}
	if png.Path != filepath.Join(dir, "Diagram.PNG") {
		t.Fatalf("expected path resolved against base, got %q", png.Path)
	}

	txt, err := src.Describe(context.Background(), filepath.Join(dir, "notes.txt"))
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if txt.MimeType != "text/plain" {
		t.Fatalf("expected parameters stripped, got %q", txt.MimeType)
	}
}

func TestDescribeRejectsMissingAndDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	src, _ := New(dir)
	for _, path := range []string{"missing.png", "sub"} {
		if _, err := src.Describe(context.Background(), path); err == nil {
			t.Fatalf("expected error for %s", path)
		}
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	src, _ := New(dir)
	ctx := context.Background()

	describe := func(name string, data []byte) domain.FileDescriptor {
		writeFile(t, dir, name, data)
		file, err := src.Describe(ctx, name)
		if err != nil {
			t.Fatalf("Describe(%s) error = %v", name, err)
		}
		return file
	}

	good := describe("report.pdf", minimalPDF())
	if good.MimeType != "application/pdf" {
		t.Fatalf("expected pdf detection, got %q", good.MimeType)
	}
	if err := src.Verify(ctx, good); err != nil {
		t.Fatalf("Verify(valid pdf) error = %v", err)
	}

	damaged := describe("damaged.pdf", []byte("%PDF-1.4\nthis is not a document\n"))
	empty := describe("empty.png", nil)
	changed := describe("changed.png", pngHeader)
	writeFile(t, dir, "changed.png", append(pngHeader, 0, 0))
	gone := describe("gone.png", pngHeader)
	if err := os.Remove(gone.Path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	for _, file := range []domain.FileDescriptor{damaged, empty, changed, gone} {
		err := src.Verify(ctx, file)
		if !domain.IsKind(err, domain.ErrFileIntegrity) {
			t.Fatalf("Verify(%s) = %v, want integrity error", file.Name, err)
		}
	}
}

func TestOpenStreamsContent(t *testing.T) {
	dir := t.TempDir()
	src, _ := New(dir)
	file, err := src.Describe(context.Background(), filepath.Base(writeFile(t, dir, "a.png", pngHeader)))
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	rc, err := src.Open(context.Background(), file)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, pngHeader) {
		t.Fatalf("unexpected content %v", data)
	}
}
