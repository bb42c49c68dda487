package visionocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

const defaultTimeout = 60 * time.Second

// Annotator is the subset of the Vision client used here.
type Annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

type gapicAnnotator struct {
	client *vision.ImageAnnotatorClient
}

func (a gapicAnnotator) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
	return a.client.BatchAnnotateImages(ctx, req)
}

func (a gapicAnnotator) Close() error {
	return a.client.Close()
}

// Config selects credentials and language hints.
type Config struct {
	// CredentialsFile is a service account JSON path. Empty falls back to
	// GOOGLE_APPLICATION_CREDENTIALS_JSON, then application default credentials.
	CredentialsFile string
	LanguageHints   []string
	Timeout         time.Duration
}

// Client runs document OCR on page images.
type Client struct {
	annotator Annotator
	hints     []string
	timeout   time.Duration
}

// ClientOptions builds Google API client options for cfg.
func ClientOptions(cfg Config) []option.ClientOption {
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	if creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")); strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return nil
}

// NewClient dials the Vision API.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	inner, err := vision.NewImageAnnotatorClient(ctx, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return NewClientWithAnnotator(gapicAnnotator{client: inner}, cfg), nil
}

// NewClientWithAnnotator wraps an existing annotator (used by tests).
func NewClientWithAnnotator(annotator Annotator, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{annotator: annotator, hints: cfg.LanguageHints, timeout: timeout}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.annotator == nil {
		return nil
	}
	return c.annotator.Close()
}

// DetectDocumentText returns the page text with line breaks preserved. A page
// without text yields "".
func (c *Client) DetectDocumentText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: image},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
		},
	}
	if len(c.hints) > 0 {
		req.ImageContext = &visionpb.ImageContext{LanguageHints: c.hints}
	}
	resp, err := c.annotator.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.GetResponses()) == 0 || resp.GetResponses()[0] == nil {
		return "", nil
	}
	first := resp.GetResponses()[0]
	if msg := first.GetError().GetMessage(); msg != "" {
		return "", errors.New("vision annotate error: " + msg)
	}
	return strings.TrimSpace(first.GetFullTextAnnotation().GetText()), nil
}
