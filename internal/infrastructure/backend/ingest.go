package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"sync"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/core/ports"
)

// Upload streams the document to POST /upload as the multipart "file" field.
// It is never retried; the breaker still sees the outcome.
func (c *Client) Upload(
	ctx context.Context,
	filename string,
	body io.Reader,
	size int64,
	progress ports.UploadProgress,
) (string, error) {
	var documentID string
	err := c.executor.ExecuteOnce(ctx, opUpload, func(ctx context.Context) error {
		id, err := c.upload(ctx, filename, body, size, progress)
		documentID = id
		return err
	}, classifyBackendError)
	if err != nil {
		return "", wrapTemporaryIfNeeded(opUpload, err)
	}
	return documentID, nil
}

func (c *Client) upload(
	ctx context.Context,
	filename string,
	body io.Reader,
	size int64,
	progress ports.UploadProgress,
) (string, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	counter := newProgressReader(body, size, progress)

	go func() {
		pw.CloseWithError(writeFilePart(form, filename, counter))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		pr.Close()
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.do(ctx, opUpload, req)
	pr.Close()
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	counter.finish()

	var payload struct {
		DocumentID string `json:"document_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", domain.WrapError(domain.ErrMalformedResponse, "decode upload response", err)
	}
	return payload.DocumentID, nil
}

func writeFilePart(form *multipart.Writer, filename string, r io.Reader) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", domain.PDFMimeType)

	part, err := form.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	return form.Close()
}

// progressReader reports the share of the body read so far. Reports are
// monotonic and only emitted when the percentage changes.
type progressReader struct {
	r        io.Reader
	size     int64
	progress ports.UploadProgress

	mu   sync.Mutex
	read int64
	last int
}

func newProgressReader(r io.Reader, size int64, progress ports.UploadProgress) *progressReader {
	return &progressReader{r: r, size: size, progress: progress, last: -1}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.size > 0 {
		p.mu.Lock()
		p.read += int64(n)
		percent := int(p.read * 100 / p.size)
		p.mu.Unlock()
		p.report(percent)
	}
	return n, err
}

func (p *progressReader) finish() {
	p.report(100)
}

func (p *progressReader) report(percent int) {
	percent = min(max(percent, 0), 100)

	p.mu.Lock()
	if percent <= p.last {
		p.mu.Unlock()
		return
	}
	p.last = percent
	p.mu.Unlock()

	if p.progress != nil {
		p.progress(percent)
	}
}
