package segment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// RembgClient talks to a rembg HTTP server. The model is selected per
// client, so one client is one engine handle.
type RembgClient struct {
	baseURL string
	model   string
	cli     *http.Client
}

func NewRembgClient(baseURL, model string) *RembgClient {
	return &RembgClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		cli:     &http.Client{},
	}
}

func (c *RembgClient) Segment(ctx context.Context, original []byte) ([]byte, error) {
	const op = "segment.RembgClient.Segment"

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "image")
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	if _, err := part.Write(original); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	endpoint := c.baseURL + "/api/remove?model=" + url.QueryEscape(c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: rembg returned %d: %s", op, resp.StatusCode, bytes.TrimSpace(detail))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return out, nil
}
