package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

const pdfMimeType = "application/pdf"

// Source resolves files picked by the learner on the local disk. Relative
// paths are taken from basePath. It implements ports.FileSource.
type Source struct {
	basePath string
}

func New(basePath string) (*Source, error) {
	if basePath == "" {
		basePath = "."
	}
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("stat base dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base path %s is not a directory", basePath)
	}
	return &Source{basePath: basePath}, nil
}

func (s *Source) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.basePath, path)
}

func (s *Source) Describe(_ context.Context, path string) (domain.FileDescriptor, error) {
	full := s.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return domain.FileDescriptor{}, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return domain.FileDescriptor{}, fmt.Errorf("%s is a directory", info.Name())
	}

	mimeType := ""
	if info.Size() > 0 {
		detected, err := mimetype.DetectFile(full)
		if err != nil {
			return domain.FileDescriptor{}, fmt.Errorf("detect file type: %w", err)
		}
		mimeType, _, _ = strings.Cut(detected.String(), ";")
	}

	return domain.FileDescriptor{
		Name:      info.Name(),
		Path:      full,
		SizeBytes: info.Size(),
		MimeType:  mimeType,
		Extension: domain.NormalizeExtension(filepath.Ext(info.Name())),
	}, nil
}

// Verify re-checks a selected file right before it is sent: it must still
// exist, be non-empty, keep its selected size and be readable. PDFs must
// also parse.
func (s *Source) Verify(_ context.Context, file domain.FileDescriptor) error {
	info, err := os.Stat(file.Path)
	if err != nil {
		return integrityError(file, fmt.Errorf("file is no longer available: %w", err))
	}
	if info.Size() == 0 {
		return integrityError(file, errors.New("file is empty"))
	}
	if file.SizeBytes > 0 && info.Size() != file.SizeBytes {
		return integrityError(file, errors.New("file changed after it was selected"))
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return integrityError(file, fmt.Errorf("file is not readable: %w", err))
	}
	_, err = f.Read(make([]byte, 1))
	f.Close()
	if err != nil {
		return integrityError(file, fmt.Errorf("file is not readable: %w", err))
	}

	if file.MimeType == pdfMimeType {
		return verifyPDF(file)
	}
	return nil
}

func verifyPDF(file domain.FileDescriptor) (err error) {
	defer func() {
		// the pdf reader panics on some malformed cross-reference tables
		if r := recover(); r != nil {
			err = integrityError(file, fmt.Errorf("document is damaged: %v", r))
		}
	}()
	f, reader, err := pdf.Open(file.Path)
	if err != nil {
		return integrityError(file, fmt.Errorf("document is damaged: %w", err))
	}
	defer f.Close()
	if reader.NumPage() == 0 {
		return integrityError(file, errors.New("document has no pages"))
	}
	return nil
}

func (s *Source) Open(_ context.Context, file domain.FileDescriptor) (io.ReadCloser, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func integrityError(file domain.FileDescriptor, err error) error {
	return domain.WrapError(domain.ErrFileIntegrity, "verify "+file.Name, err)
}
