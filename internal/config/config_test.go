package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTOSAVE_INTERVAL", "")
	t.Setenv("ORA_RETRY_MAX_ATTEMPTS", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("CONFIRM_MODE", "")
	t.Setenv("QUESTION_MAX_TOTAL_BYTES", "")
	t.Setenv("API_RATE_LIMIT_RPS", "")
	t.Setenv("FILES_BASE_PATH", "")

	cfg := Load()
	if cfg.AutosaveInterval != 30*time.Second {
		t.Fatalf("expected default autosave interval 30s, got %s", cfg.AutosaveInterval)
	}
	if cfg.RetryMaxAttempts != 1 {
		t.Fatalf("expected transport retries disabled by default, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.NATSSubject != "ora.workflow.advance" {
		t.Fatalf("expected default subject, got %q", cfg.NATSSubject)
	}
	if cfg.ConfirmMode != "prompt" {
		t.Fatalf("expected prompt confirmation, got %q", cfg.ConfirmMode)
	}
	if cfg.Question.MaxTotalBytes != 5*1024*1024 {
		t.Fatalf("expected 5MiB default, got %d", cfg.Question.MaxTotalBytes)
	}
	if cfg.APIRateLimitRPS != 20 || cfg.FilesBasePath != "." {
		t.Fatalf("unexpected api limit %v or files base %q", cfg.APIRateLimitRPS, cfg.FilesBasePath)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("AUTOSAVE_INTERVAL", "45")
	t.Setenv("ORA_POLL_INTERVAL", "250ms")
	t.Setenv("ORA_RATE_LIMIT_RPS", "0.5")
	t.Setenv("CONFIRM_MODE", "ACCEPT")
	t.Setenv("QUESTION_ALLOWED_EXTENSIONS", "txt, .md ,,csv")

	cfg := Load()
	if cfg.AutosaveInterval != 45*time.Second {
		t.Fatalf("expected bare seconds to parse, got %s", cfg.AutosaveInterval)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms poll interval, got %s", cfg.PollInterval)
	}
	if cfg.RateLimitRPS != 0.5 {
		t.Fatalf("expected rps 0.5, got %v", cfg.RateLimitRPS)
	}
	if cfg.ConfirmMode != "accept" {
		t.Fatalf("expected lowercased confirm mode, got %q", cfg.ConfirmMode)
	}
	if got := cfg.Question.AllowedExtensions; len(got) != 3 || got[1] != ".md" {
		t.Fatalf("unexpected extension list %v", got)
	}
}

func TestLoadIgnoresMalformedDuration(t *testing.T) {
	t.Setenv("AUTOSAVE_INTERVAL", "soon")
	if got := Load().AutosaveInterval; got != 30*time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestLoadQuestionOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "question.yaml")
	content := []byte(`problem_name: Sample Coding Question 1
text_response: optional
file_upload_response: required
file_upload_type: custom
white_listed_file_types: [".TXT", "csv"]
max_files: 50
language: python
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write question file: %v", err)
	}

	settings, err := LoadQuestion(path, QuestionSettings{Text: "print(1)", MaxTotalBytes: 1024})
	if err != nil {
		t.Fatalf("LoadQuestion() error = %v", err)
	}
	if settings.Text != "print(1)" || settings.Language != "python" {
		t.Fatalf("expected fallback text and file language, got %+v", settings)
	}

	policy, err := settings.Policy()
	if err != nil {
		t.Fatalf("Policy() error = %v", err)
	}
	if policy.TextMode != domain.RequirementOptional || policy.FileMode != domain.RequirementRequired {
		t.Fatalf("unexpected modes %+v", policy)
	}
	if policy.UploadType != domain.UploadTypeCustom || len(policy.AllowedExtensions) != 2 || policy.AllowedExtensions[0] != "txt" {
		t.Fatalf("unexpected upload policy %+v", policy)
	}
	if policy.MaxFiles != domain.DefaultMaxFiles || policy.MaxTotalBytes != 1024 {
		t.Fatalf("unexpected limits %+v", policy)
	}
}

func TestLoadQuestionWithoutPathReturnsFallback(t *testing.T) {
	fallback := QuestionSettings{ProblemName: "q", TextResponse: "required"}
	got, err := LoadQuestion(" ", fallback)
	if err != nil || got.ProblemName != "q" {
		t.Fatalf("LoadQuestion() = %+v, %v", got, err)
	}
}

func TestPolicyRejectsInconsistentSettings(t *testing.T) {
	cases := map[string]QuestionSettings{
		"unknown mode":        {TextResponse: "sometimes"},
		"files without type":  {TextResponse: "required", FileUploadMode: "optional"},
		"custom without list": {TextResponse: "required", FileUploadMode: "optional", FileUploadType: "custom"},
		"nothing accepted":    {TextResponse: "none", FileUploadMode: "none"},
		"unknown upload type": {TextResponse: "required", FileUploadMode: "optional", FileUploadType: "video"},
	}
	for name, settings := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := settings.Policy(); err == nil {
				t.Fatalf("expected error for %+v", settings)
			}
		})
	}
}
