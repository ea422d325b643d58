package usecase

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

// CanSubmit reports whether the final submission gate is open for the
// given text and file presence.
func CanSubmit(policy domain.QuestionPolicy, text string, hasFiles bool) bool {
	blank := strings.TrimSpace(text) == ""
	switch {
	case policy.TextMode == domain.RequirementRequired && blank:
		return false
	case policy.FileMode == domain.RequirementRequired && !hasFiles:
		return false
	case policy.TextMode == domain.RequirementOptional && policy.FileMode == domain.RequirementOptional && blank && !hasFiles:
		return false
	}
	return true
}

// CanSave ignores file state: files are attached independently of saves.
func CanSave(policy domain.QuestionPolicy, text string) bool {
	return !(policy.TextMode == domain.RequirementRequired && strings.TrimSpace(text) == "")
}

// ValidateFileSet accepts the whole set or nothing. Checks run per file in
// selection order: cumulative size, upload-type policy, then the deny-list.
func ValidateFileSet(policy domain.QuestionPolicy, files domain.FileSet) error {
	const op = "validate files"
	if len(files) == 0 {
		return domain.WrapError(domain.ErrValidation, op, fmt.Errorf("no files selected"))
	}
	maxFiles := policy.MaxFiles
	if maxFiles <= 0 {
		maxFiles = domain.DefaultMaxFiles
	}
	if len(files) > maxFiles {
		return domain.WrapError(domain.ErrValidation, op, fmt.Errorf("you can upload at most %d files", maxFiles))
	}

	var total int64
	for _, f := range files {
		total += f.SizeBytes
		if policy.MaxTotalBytes > 0 && total > policy.MaxTotalBytes {
			return domain.WrapError(domain.ErrValidation, op,
				fmt.Errorf("file %q exceeds the %d byte limit for all files", f.Name, policy.MaxTotalBytes))
		}
		if err := checkUploadType(policy, f); err != nil {
			return domain.WrapError(domain.ErrValidation, op, err)
		}
		if slices.Contains(domain.DeniedExtensions, domain.NormalizeExtension(f.Extension)) {
			return domain.WrapError(domain.ErrValidation, op,
				fmt.Errorf("file %q has a forbidden extension", f.Name))
		}
	}
	return nil
}

func checkUploadType(policy domain.QuestionPolicy, f domain.FileDescriptor) error {
	switch policy.UploadType {
	case domain.UploadTypeImage:
		if !slices.Contains(domain.ImageMimeTypes, f.MimeType) {
			return fmt.Errorf("file %q must be a GIF, JPG or PNG image", f.Name)
		}
	case domain.UploadTypePDFAndImage:
		if !slices.Contains(domain.FileMimeTypes, f.MimeType) {
			return fmt.Errorf("file %q must be a PDF or an image", f.Name)
		}
	case domain.UploadTypeCustom:
		ext := domain.NormalizeExtension(f.Extension)
		allowed := slices.ContainsFunc(policy.AllowedExtensions, func(candidate string) bool {
			return domain.NormalizeExtension(candidate) == ext
		})
		if !allowed {
			return fmt.Errorf("file %q must have one of the extensions: %s", f.Name, strings.Join(policy.AllowedExtensions, ", "))
		}
	default:
		return fmt.Errorf("file uploads are not enabled for this question")
	}
	return nil
}
