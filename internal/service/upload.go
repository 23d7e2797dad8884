package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/optima-study/optima/internal/client"
	"github.com/optima-study/optima/internal/domain/material"
)

// MaxUploadSize is the largest file the backend accepts.
const MaxUploadSize = 10 * 1024 * 1024

// Uploader is the part of the API client that submits materials.
type Uploader interface {
	UploadFile(ctx context.Context, up client.FileUpload) (material.Material, error)
	UploadText(ctx context.Context, up client.TextUpload) (material.Material, error)
}

// UploadRequest describes one submission: a file on disk or pasted text,
// never both.
type UploadRequest struct {
	Title    string
	FilePath string
	Text     string
}

// UploadService validates submissions locally and sends them.
type UploadService struct {
	backend Uploader
	logger  *slog.Logger
}

func NewUploadService(backend Uploader, logger *slog.Logger) *UploadService {
	return &UploadService{backend: backend, logger: logger}
}

// Upload validates req and submits it. Validation failures are
// *ValidationError and never reach the network.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (material.Material, error) {
	hasFile := strings.TrimSpace(req.FilePath) != ""
	hasText := req.Text != ""

	switch {
	case hasFile && hasText:
		return material.Material{}, invalid("source", "provide either a file or text, not both")
	case !hasFile && !hasText:
		return material.Material{}, invalid("source", "provide a file or text")
	case hasFile:
		return s.uploadFile(ctx, req)
	default:
		return s.uploadText(ctx, req)
	}
}

func (s *UploadService) uploadText(ctx context.Context, req UploadRequest) (material.Material, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return material.Material{}, invalid("title", "title is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return material.Material{}, invalid("text", "content is empty")
	}

	m, err := s.backend.UploadText(ctx, client.TextUpload{Title: title, Content: req.Text})
	if err != nil {
		return m, fmt.Errorf("upload text: %w", err)
	}
	s.logger.Info("material uploaded", "material_id", m.ID, "file_type", m.FileType)
	return m, nil
}

func (s *UploadService) uploadFile(ctx context.Context, req UploadRequest) (material.Material, error) {
	file, err := PrepareFile(req.FilePath, req.Title)
	if err != nil {
		return material.Material{}, err
	}

	m, err := s.backend.UploadFile(ctx, client.FileUpload{
		Title:       file.Title,
		FileName:    file.Name,
		ContentType: file.ContentType,
		Body:        bytes.NewReader(file.Data),
	})
	if err != nil {
		return m, fmt.Errorf("upload %s: %w", file.Name, err)
	}
	s.logger.Info("material uploaded",
		"material_id", m.ID,
		"file_type", m.FileType,
		"bytes", len(file.Data),
	)
	return m, nil
}

// PreparedFile is a validated file ready to send.
type PreparedFile struct {
	Title       string
	Name        string
	ContentType string
	Data        []byte
}

// PrepareFile checks that path is a PDF or plain-text file within the size
// limit. A blank title defaults to the file name without its extension.
func PrepareFile(path, title string) (PreparedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return PreparedFile{}, invalid("file", err.Error())
	}
	if info.IsDir() {
		return PreparedFile{}, invalid("file", "is a directory")
	}
	if info.Size() > MaxUploadSize {
		return PreparedFile{}, invalid("file", "file size must be less than 10MB")
	}

	name := filepath.Base(path)
	want, ok := contentTypeFor(name)
	if !ok {
		return PreparedFile{}, invalid("file", "only PDF or text files are supported")
	}

	f, err := os.Open(path)
	if err != nil {
		return PreparedFile{}, invalid("file", err.Error())
	}
	defer f.Close()

	// Read one byte past the limit to catch files that grew after Stat.
	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		return PreparedFile{}, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > MaxUploadSize {
		return PreparedFile{}, invalid("file", "file size must be less than 10MB")
	}
	if len(data) == 0 {
		return PreparedFile{}, invalid("file", "file is empty")
	}
	if sniffed := http.DetectContentType(data); !strings.HasPrefix(sniffed, want) {
		return PreparedFile{}, invalid("file", fmt.Sprintf("content looks like %s, not %s", sniffed, want))
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if title == "" {
		return PreparedFile{}, invalid("title", "title is required")
	}

	return PreparedFile{Title: title, Name: name, ContentType: want, Data: data}, nil
}

func contentTypeFor(name string) (string, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf", true
	case ".txt", ".text", ".md":
		return "text/plain", true
	default:
		return "", false
	}
}
