package material

import (
	"encoding/json"
	"strings"
	"time"
)

type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeText FileType = "text"
)

// Material is a user-submitted document. It is never modified after upload;
// the only lifecycle event after creation is deletion.
type Material struct {
	ID         int64     `json:"id" yaml:"id"`
	Title      string    `json:"title" yaml:"title"`
	Content    string    `json:"content" yaml:"content"`
	FileType   FileType  `json:"file_type" yaml:"file_type"`
	FileURL    *string   `json:"file_url,omitempty" yaml:"file_url,omitempty"`
	UserID     int64     `json:"user_id,omitempty" yaml:"-"`
	UploadedAt Timestamp `json:"uploaded_at" yaml:"uploaded_at"`
}

// DownloadName is the local file name used when saving the material.
func (m Material) DownloadName() string {
	ext := "txt"
	if m.FileType == FileTypePDF {
		ext = "pdf"
	}
	name := strings.TrimSpace(m.Title)
	if name == "" {
		name = "material"
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	return name + "." + ext
}

// Record is a material together with whatever the backend has generated
// for it so far. GeneratedData is nil until the first AI result exists.
type Record struct {
	Material      Material       `json:"material"`
	GeneratedData *GeneratedData `json:"generated_data"`
}

// HasAnyGenerated reports whether at least one AI field is present.
func (r Record) HasAnyGenerated() bool {
	return r.GeneratedData.HasAny()
}

// Timestamp accepts the backend's datetimes, which may omit the zone.
// Values without a zone are taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	// An unreadable date must not make the whole record unreadable.
	t.Time = time.Time{}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

func (t Timestamp) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format(time.RFC3339), nil
}
