package remote

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nkurosawa/taskrelay/internal/model"
)

const (
	uploadPath = "/task/openapi/upload"

	maxFilenameLen = 200

	// DefaultMaxUploadBytes caps asset size when config does not override it.
	DefaultMaxUploadBytes = 10 << 20 // 10 MB
)

// allowedExtensions is the image allow-list enforced before any network call.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// uploadData is the data payload of a successful upload response.
type uploadData struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

// Upload validates a raw asset and pushes it to the region's upload
// endpoint, returning the opaque file token the provider assigns. Local
// validation failures surface as *ValidationError before any I/O; there is
// no automatic retry.
func (c *Client) Upload(ctx context.Context, data []byte, filename string, region model.Region) (model.FileToken, error) {
	maxBytes := c.cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if err := validateAsset(data, filename, maxBytes); err != nil {
		uploadsTotal.WithLabelValues("invalid").Inc()
		return "", err
	}

	rc, ok := c.cfg.Regions[region]
	if !ok {
		return "", &ValidationError{Reason: fmt.Sprintf("unknown region %q", region)}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("apiKey", c.cfg.APIKey); err != nil {
		return "", fmt.Errorf("write apiKey field: %w", err)
	}
	if err := mw.WriteField("fileType", "image"); err != nil {
		return "", fmt.Errorf("write fileType field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL(rc)+uploadPath, &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	env, err := c.do(req, rc, uploadPath)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	var out uploadData
	if err := decodeData(env, &out); err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	if out.FileName == "" {
		uploadsTotal.WithLabelValues("error").Inc()
		return "", &UpstreamRejection{Code: env.Code, Message: "upload response carried no file token"}
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	c.logger.Debug("asset uploaded", "filename", filename, "region", region, "token", out.FileName)
	return model.FileToken(out.FileName), nil
}

// validateAsset enforces the local upload rules: image allow-list by
// extension and sniffed content type, a safe filename, and the size cap.
func validateAsset(data []byte, filename string, maxBytes int64) error {
	if len(data) == 0 {
		return &ValidationError{Reason: "empty file"}
	}
	if int64(len(data)) > maxBytes {
		return &ValidationError{Reason: fmt.Sprintf("file exceeds %d bytes", maxBytes)}
	}
	if filename == "" || len(filename) > maxFilenameLen {
		return &ValidationError{Reason: "filename missing or too long"}
	}
	if strings.ContainsAny(filename, `/\`) || filename != filepath.Base(filename) {
		return &ValidationError{Reason: "filename must not contain path separators"}
	}
	for _, r := range filename {
		if r < 0x20 || r == 0x7f {
			return &ValidationError{Reason: "filename contains control characters"}
		}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return &ValidationError{Reason: fmt.Sprintf("extension %q is not an allowed image type", ext)}
	}
	if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
		return &ValidationError{Reason: fmt.Sprintf("content sniffed as %s, not an image", mt.String())}
	}
	return nil
}
