// Package attach resolves inbound attachment references (data URIs) into
// byte payloads with MIME metadata for publishing alongside the generated app.
package attach

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/appbuilder/internal/logfields"
)

// Attachment is an inbound file reference from a build request.
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// Resolved is a decoded attachment ready for publishing.
type Resolved struct {
	Name string
	Data []byte
	MIME string
}

// IsText reports whether the attachment should be committed as decoded text
// rather than raw bytes. The policy is a text/ MIME prefix or a .json name.
func (r Resolved) IsText() bool {
	return strings.HasPrefix(r.MIME, "text/") || strings.HasSuffix(r.Name, ".json")
}

// mimeExtensions maps known MIME types to file extensions appended when the
// attachment name lacks one.
var mimeExtensions = map[string]string{
	"image/png":              "png",
	"image/jpeg":             "jpg",
	"image/gif":              "gif",
	"image/svg+xml":          "svg",
	"text/plain":             "txt",
	"text/csv":               "csv",
	"application/json":       "json",
	"application/pdf":        "pdf",
	"text/markdown":          "md",
	"text/html":              "html",
	"application/javascript": "js",
	"text/css":               "css",
}

// Resolve decodes a list of attachments. Entries that are not data URIs or
// fail to decode are skipped with a warning; the remainder is returned.
func Resolve(attachments []Attachment) []Resolved {
	if len(attachments) == 0 {
		return nil
	}
	resolved := make([]Resolved, 0, len(attachments))
	for _, a := range attachments {
		r, err := resolveOne(a)
		if err != nil {
			slog.Warn("Skipping attachment", slog.String("name", a.Name), logfields.Error(err))
			continue
		}
		resolved = append(resolved, r)
	}
	return resolved
}

func resolveOne(a Attachment) (Resolved, error) {
	if !strings.HasPrefix(a.URL, "data:") {
		return Resolved{}, fmt.Errorf("attachment %q is not a data URI", a.Name)
	}

	header, payload, ok := strings.Cut(a.URL, ",")
	if !ok {
		return Resolved{}, fmt.Errorf("malformed data URI for %q", a.Name)
	}

	meta := strings.TrimPrefix(header, "data:")
	parts := strings.Split(meta, ";")
	mimeType := parts[0]
	if mimeType == "" {
		mimeType = "text/plain"
	}

	isBase64 := false
	for _, p := range parts[1:] {
		if strings.TrimSpace(p) == "base64" {
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return Resolved{}, fmt.Errorf("base64 decode %q: %w", a.Name, err)
		}
		data = decoded
	} else {
		// Non-base64 data URIs carry percent-encoded text.
		unescaped, err := url.QueryUnescape(payload)
		if err != nil {
			unescaped = payload
		}
		data = []byte(unescaped)
	}

	name := a.Name
	if name == "" {
		name = "attachment"
	}
	if ext, ok := mimeExtensions[mimeType]; ok && !strings.HasSuffix(name, "."+ext) {
		name = name + "." + ext
	}

	return Resolved{Name: name, Data: data, MIME: mimeType}, nil
}
