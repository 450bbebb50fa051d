package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

// AnalyzeImage uploads a photo to the vision endpoint of the log type and
// returns the raw response. The response is untrusted and is interpreted
// by normalize.Photo.
func (c *Client) AnalyzeImage(ctx context.Context, logType record.LogType, image io.Reader, filename string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/api/analyze/%s-from-image", c.analysisURL, logType.Slug())
	request, err := c.newMultipartRequest(ctx, endpoint, "image", image, filename)
	if err != nil {
		return nil, err
	}

	raw := json.RawMessage{}
	if err := c.do(request, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Transcribe uploads an audio clip and returns the transcript text.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	request, err := c.newMultipartRequest(ctx, c.analysisURL+"/api/voice/transcribe", "audio", audio, filename)
	if err != nil {
		return "", err
	}

	response := struct {
		Transcript string `json:"transcript"`
	}{}
	if err := c.do(request, &response); err != nil {
		return "", err
	}
	return response.Transcript, nil
}

func (c *Client) newMultipartRequest(ctx context.Context, endpoint string, field string, content io.Reader, filename string) (*http.Request, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy %s: %w", field, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	request, err := c.newRequest(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request, nil
}
