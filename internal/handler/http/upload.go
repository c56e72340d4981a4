package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vidtube/backend/internal/service"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// UploadConfig bounds multipart uploads.
type UploadConfig struct {
	MaxBytes int64
	// TmpDir receives spooled files. Empty means os.TempDir().
	TmpDir string
}

// spool copies uploaded files to local temp files before they are handed
// to the service. cleanup removes every file it created.
type spool struct {
	cfg    UploadConfig
	form   *multipart.Form
	files  []*os.File
	logger *slog.Logger
}

func newSpool(cfg UploadConfig, logger *slog.Logger) *spool {
	return &spool{cfg: cfg, logger: logger}
}

// parse reads r as a multipart form limited to MaxBytes.
func (s *spool) parse(w http.ResponseWriter, r *http.Request) error {
	if s.cfg.MaxBytes > 0 {
		if r.ContentLength > s.cfg.MaxBytes {
			return apperrors.PayloadTooLarge(s.cfg.MaxBytes)
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBytes)
	}
	err := r.ParseMultipartForm(maxFormMemory)
	s.form = r.MultipartForm
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.PayloadTooLarge(maxErr.Limit)
		}
		return apperrors.InvalidInput("invalid multipart body")
	}
	return nil
}

// take spools the file in field. A missing file yields (nil, nil).
func (s *spool) take(r *http.Request, field string) (*service.File, error) {
	src, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperrors.InvalidInput("invalid " + field + " file")
	}
	defer src.Close()

	tmp, err := os.CreateTemp(s.cfg.TmpDir, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	s.files = append(s.files, tmp)

	n, err := io.Copy(tmp, src)
	if err != nil {
		return nil, fmt.Errorf("spool %s: %w", field, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", field, err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &service.File{
		Name:        header.Filename,
		ContentType: contentType,
		Reader:      tmp,
		Size:        n,
	}, nil
}

func (s *spool) cleanup() {
	for _, f := range s.files {
		_ = f.Close()
		if err := os.Remove(f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove temp upload",
				slog.String("path", f.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
	s.files = nil

	if s.form != nil {
		_ = s.form.RemoveAll()
	}
}
