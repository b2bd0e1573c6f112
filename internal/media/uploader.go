// Package media uploads user files to the media SaaS endpoint.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
)

// ErrNoSecureURL means the upload response carried no secure URL; the
// upload is treated as failed even on HTTP 200.
var ErrNoSecureURL = errors.New("upload response missing secure url")

// Uploader posts multipart uploads to the configured endpoint.
type Uploader struct {
	endpoint string
	preset   string
	http     *http.Client
}

// NewUploader builds an uploader for the given unsigned-preset
// endpoint.
func NewUploader(endpoint, preset string, timeout time.Duration) *Uploader {
	return &Uploader{
		endpoint: endpoint,
		preset:   preset,
		http:     &http.Client{Timeout: timeout},
	}
}

// Upload sends the file under the given folder and returns the secure
// URL from the response.
func (u *Uploader) Upload(ctx context.Context, fileName string, file io.Reader, folder string) (string, error) {
	body, contentType, err := buildForm(fileName, file, u.preset, folder)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}

	var decoded struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if decoded.SecureURL == "" {
		return "", ErrNoSecureURL
	}
	return decoded.SecureURL, nil
}

// ContextForFile picks the share context for an uploaded file by
// extension; anything that is not an image shares as a document.
func ContextForFile(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return models.ContextImage
	default:
		return models.ContextDocument
	}
}

func buildForm(fileName string, file io.Reader, preset, folder string) (io.Reader, string, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := writer.WriteField("upload_preset", preset); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := writer.WriteField("folder", folder); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	return pr, writer.FormDataContentType(), nil
}
