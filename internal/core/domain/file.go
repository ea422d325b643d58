package domain

import "strings"

type FileDescriptor struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SizeBytes   int64  `json:"size_bytes"`
	MimeType    string `json:"mime_type"`
	Extension   string `json:"extension"`
	Description string `json:"description"`
}

// FileSet is ordered by selection; the index is the identity used for
// descriptions, upload locations and download locations.
type FileSet []FileDescriptor

func (s FileSet) TotalBytes() int64 {
	var total int64
	for _, f := range s {
		total += f.SizeBytes
	}
	return total
}

func (s FileSet) DescriptionsComplete() bool {
	if len(s) == 0 {
		return false
	}
	for _, f := range s {
		if strings.TrimSpace(f.Description) == "" {
			return false
		}
	}
	return true
}

func (s FileSet) Descriptions() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = strings.TrimSpace(f.Description)
	}
	return out
}

type UploadState struct {
	Selected bool `json:"selected"`
	Uploaded bool `json:"uploaded"`
}

type UploadStage string

const (
	StageIdle                   UploadStage = "idle"
	StageValidating             UploadStage = "validating"
	StageDescribingFiles        UploadStage = "describing_files"
	StageRemovingPriorFiles     UploadStage = "removing_prior_files"
	StagePersistingDescriptions UploadStage = "persisting_descriptions"
	StageUploadingSequentially  UploadStage = "uploading_sequentially"
	StageDone                   UploadStage = "done"
	StageFailed                 UploadStage = "failed"
)
