package upload

import (
	"path/filepath"
	"strings"
)

const mib = 1 << 20

// Profile describes what an upload endpoint accepts.
type Profile struct {
	Name        string
	Field       string
	MaxFiles    int
	MaxFileSize int64
	Extensions  []string
	// MIMETypes is an exact allow-list. When empty, MIMEKeywords is used.
	MIMETypes []string
	// MIMEKeywords accepts any declared type containing one of the keywords.
	MIMEKeywords []string
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// AvatarProfile accepts one image of at most 5 MiB under the "avatar" field.
var AvatarProfile = Profile{
	Name:         "avatar",
	Field:        "avatar",
	MaxFiles:     1,
	MaxFileSize:  5 * mib,
	Extensions:   imageExtensions,
	MIMEKeywords: []string{"jpeg", "jpg", "png", "gif", "webp"},
}

// MediaProfile accepts up to ten images or documents of at most 10 MiB each
// under the "media" field.
var MediaProfile = Profile{
	Name:        "media",
	Field:       "media",
	MaxFiles:    10,
	MaxFileSize: 10 * mib,
	Extensions:  append(append([]string{}, imageExtensions...), ".pdf", ".doc", ".docx", ".txt"),
	MIMETypes: []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
	},
}

// Allows reports whether both the extension of filename and the declared
// content type pass the profile's allow-lists.
func (p Profile) Allows(filename, declaredMIME string) bool {
	return p.allowsExtension(filename) && p.allowsMIME(declaredMIME)
}

func (p Profile) allowsExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range p.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (p Profile) allowsMIME(declared string) bool {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared == "" {
		return false
	}
	if len(p.MIMETypes) > 0 {
		for _, m := range p.MIMETypes {
			if declared == m {
				return true
			}
		}
		return false
	}
	for _, k := range p.MIMEKeywords {
		if strings.Contains(declared, k) {
			return true
		}
	}
	return false
}

// bodyLimit caps the whole request body, leaving room for multipart framing.
func (p Profile) bodyLimit() int64 {
	return int64(p.MaxFiles)*p.MaxFileSize + mib
}
