package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

// QuestionSettings mirrors the question's authoring settings plus the
// response the daemon starts from.
type QuestionSettings struct {
	ProblemName       string   `yaml:"problem_name"`
	TextResponse      string   `yaml:"text_response"`
	FileUploadMode    string   `yaml:"file_upload_response"`
	FileUploadType    string   `yaml:"file_upload_type"`
	AllowedExtensions []string `yaml:"white_listed_file_types"`
	MaxTotalBytes     int64    `yaml:"max_total_bytes"`
	MaxFiles          int      `yaml:"max_files"`

	Text     string `yaml:"text"`
	Language string `yaml:"language"`
}

// LoadQuestion reads settings from a YAML file; fields the file leaves
// empty keep the fallback values. An empty path returns the fallback.
func LoadQuestion(path string, fallback QuestionSettings) (QuestionSettings, error) {
	if strings.TrimSpace(path) == "" {
		return fallback, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return QuestionSettings{}, fmt.Errorf("read question file: %w", err)
	}

	out := fallback
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return QuestionSettings{}, fmt.Errorf("parse question file %s: %w", path, err)
	}
	return out, nil
}

func (q QuestionSettings) Policy() (domain.QuestionPolicy, error) {
	textMode, err := domain.ParseRequirementMode(q.TextResponse)
	if err != nil {
		return domain.QuestionPolicy{}, fmt.Errorf("text_response: %w", err)
	}
	fileMode, err := domain.ParseRequirementMode(q.FileUploadMode)
	if err != nil {
		return domain.QuestionPolicy{}, fmt.Errorf("file_upload_response: %w", err)
	}
	uploadType, err := domain.ParseUploadType(q.FileUploadType)
	if err != nil {
		return domain.QuestionPolicy{}, err
	}
	if fileMode != domain.RequirementNone && uploadType == domain.UploadTypeNone {
		return domain.QuestionPolicy{}, fmt.Errorf("file_upload_type is required when file uploads are %s", fileMode)
	}
	if uploadType == domain.UploadTypeCustom && len(q.AllowedExtensions) == 0 {
		return domain.QuestionPolicy{}, fmt.Errorf("custom file_upload_type needs white_listed_file_types")
	}
	if textMode == domain.RequirementNone && fileMode == domain.RequirementNone {
		return domain.QuestionPolicy{}, fmt.Errorf("a question must accept a text or a file response")
	}

	extensions := make([]string, 0, len(q.AllowedExtensions))
	for _, ext := range q.AllowedExtensions {
		if ext = domain.NormalizeExtension(ext); ext != "" {
			extensions = append(extensions, ext)
		}
	}
	maxFiles := q.MaxFiles
	if maxFiles <= 0 || maxFiles > domain.DefaultMaxFiles {
		maxFiles = domain.DefaultMaxFiles
	}
	return domain.QuestionPolicy{
		ProblemName:       strings.TrimSpace(q.ProblemName),
		TextMode:          textMode,
		FileMode:          fileMode,
		UploadType:        uploadType,
		AllowedExtensions: extensions,
		MaxTotalBytes:     q.MaxTotalBytes,
		MaxFiles:          maxFiles,
	}, nil
}
