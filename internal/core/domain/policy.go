package domain

import (
	"fmt"
	"strings"
)

type RequirementMode string

const (
	RequirementRequired RequirementMode = "required"
	RequirementOptional RequirementMode = "optional"
	RequirementNone     RequirementMode = "none"
)

func ParseRequirementMode(raw string) (RequirementMode, error) {
	switch mode := RequirementMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case RequirementRequired, RequirementOptional, RequirementNone:
		return mode, nil
	case "":
		return RequirementNone, nil
	default:
		return "", fmt.Errorf("unknown requirement mode %q", raw)
	}
}

type UploadType string

const (
	UploadTypeNone        UploadType = ""
	UploadTypeImage       UploadType = "image"
	UploadTypePDFAndImage UploadType = "pdf-and-image"
	UploadTypeCustom      UploadType = "custom"
)

func ParseUploadType(raw string) (UploadType, error) {
	switch t := UploadType(strings.ToLower(strings.TrimSpace(raw))); t {
	case UploadTypeNone, UploadTypeImage, UploadTypePDFAndImage, UploadTypeCustom:
		return t, nil
	default:
		return "", fmt.Errorf("unknown file upload type %q", raw)
	}
}

const DefaultMaxFiles = 20

var (
	ImageMimeTypes = []string{"image/gif", "image/jpeg", "image/pjpeg", "image/png"}
	FileMimeTypes  = append([]string{"application/pdf"}, ImageMimeTypes...)
)

// DeniedExtensions applies to every upload type and wins over any allow-list.
var DeniedExtensions = []string{
	"exe", "msi", "app", "dmg", "com", "pif", "application", "gadget",
	"msp", "scr", "hta", "cpl", "msc", "jar", "bat", "cmd", "vb", "vbs",
	"jse", "ws", "wsf", "wsc", "wsh", "scf", "lnk", "inf", "reg", "ps1",
	"ps1xml", "ps2", "ps2xml", "psc1", "psc2", "msh", "msh1", "msh2", "mshxml",
	"msh1xml", "msh2xml", "action", "apk", "bin", "command", "csh",
	"ins", "inx", "ipa", "isu", "job", "mst", "osx", "out", "paf", "prg",
	"rgs", "run", "sct", "shb", "shs", "u3p", "vbscript", "vbe", "workflow",
	"htm", "html",
}

// QuestionPolicy holds the per-question configuration the validation
// predicates and the upload orchestrator consult.
type QuestionPolicy struct {
	ProblemName       string
	TextMode          RequirementMode
	FileMode          RequirementMode
	UploadType        UploadType
	AllowedExtensions []string
	MaxTotalBytes     int64
	MaxFiles          int
}

// NormalizeExtension lowercases and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
