package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/rs/zerolog"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
	"github.com/diagnosphere/skincheck-api/internal/core/ports"
)

const (
	DefaultTimeout = 15 * time.Second

	// maxResponseBytes bounds the decoded result document.
	maxResponseBytes = 1 << 20
)

// HTTPClassifier posts the image and symptoms to a remote model server and
// decodes a domain.Results document from the response.
type HTTPClassifier struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

func NewHTTPClassifier(url string, timeout time.Duration, log zerolog.Logger) *HTTPClassifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClassifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, in ports.ClassifyInput) (*domain.Results, error) {
	symptoms, err := json.Marshal(in.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("encode symptoms: %w", err)
	}

	// Stream the multipart body so the image is never buffered whole.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	written := make(chan struct{})
	go func() {
		defer close(written)
		pw.CloseWithError(writeForm(mw, in, symptoms))
	}()
	// The writer reads in.Image, which the caller closes once Classify
	// returns. Stop it and wait for it on every path.
	defer func() {
		pr.Close()
		<-written
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if in.DiagnosisID != "" {
		req.Header.Set("X-Diagnosis-ID", in.DiagnosisID)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("diagnosis_id", in.DiagnosisID).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("classifier responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, snippet)
	}

	var results domain.Results
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if len(results.Predictions) == 0 {
		return nil, errors.New("classifier returned no predictions")
	}
	return &results, nil
}

func writeForm(mw *multipart.Writer, in ports.ClassifyInput, symptoms []byte) error {
	if err := mw.WriteField("symptoms", string(symptoms)); err != nil {
		return err
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="image"`)
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if in.Image != nil {
		if _, err := io.Copy(part, in.Image); err != nil {
			return err
		}
	}
	return mw.Close()
}
