package extraction

import (
	"context"
	"errors"
	"strings"

	"scriptsync/internal/services/gemini"
	"scriptsync/internal/services/llm"
	"scriptsync/internal/services/visionocr"
)

// PagePrompt asks a vision model for the dialogue table of one script page.
const PagePrompt = "This image is a page from a Japanese anime/game script. " +
	"Only extract text if you find a script table. " +
	"For each dialogue entry in the table, output strictly in the format 'actor : dialogue', with exactly one entry per line. " +
	"Do not include scene descriptions, JSON, bounding boxes, or any introductory text. " +
	"If no script table or dialogue is found, return an empty string."

// Usage is token accounting for one page.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

func (u Usage) add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// PageText is what an extractor returns for one page image.
type PageText struct {
	Text  string
	Usage Usage
}

// PageExtractor reads the dialogue lines of one PNG page image.
type PageExtractor interface {
	Name() string
	ExtractPage(ctx context.Context, image []byte) (PageText, error)
}

type openRouterExtractor struct {
	client    *llm.Client
	model     string
	maxTokens int
}

// NewOpenRouterExtractor extracts pages with a vision model through OpenRouter.
func NewOpenRouterExtractor(client *llm.Client, model string, maxTokens int) PageExtractor {
	return openRouterExtractor{client: client, model: model, maxTokens: maxTokens}
}

func (e openRouterExtractor) Name() string { return "llm:" + e.model }

func (e openRouterExtractor) ExtractPage(ctx context.Context, image []byte) (PageText, error) {
	resp, err := e.client.Complete(ctx, llm.Request{
		Model:      e.model,
		UserPrompt: PagePrompt,
		Images:     []llm.Image{{MIMEType: "image/png", Data: image}},
		MaxTokens:  e.maxTokens,
	})
	if err != nil {
		if errors.Is(err, llm.ErrEmptyContent) {
			return PageText{}, nil
		}
		return PageText{}, err
	}
	return PageText{
		Text: cleanPageText(resp.Content),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

type geminiExtractor struct {
	client    *gemini.Client
	model     string
	maxTokens int
}

// NewGeminiExtractor extracts pages with a Gemini vision model.
func NewGeminiExtractor(client *gemini.Client, model string, maxTokens int) PageExtractor {
	return geminiExtractor{client: client, model: model, maxTokens: maxTokens}
}

func (e geminiExtractor) Name() string { return "llm:" + e.model }

func (e geminiExtractor) ExtractPage(ctx context.Context, image []byte) (PageText, error) {
	resp, err := e.client.Generate(ctx, gemini.Request{
		Model:           e.model,
		UserPrompt:      PagePrompt,
		Images:          []gemini.Image{{MIMEType: "image/png", Data: image}},
		MaxOutputTokens: e.maxTokens,
	})
	if err != nil {
		// An empty reply is the requested answer for a page without dialogue.
		if errors.Is(err, gemini.ErrEmptyResponse) {
			return PageText{}, nil
		}
		return PageText{}, err
	}
	return PageText{
		Text: cleanPageText(resp.Content),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CandidateTokens + resp.Usage.ThoughtsTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

type visionExtractor struct {
	client *visionocr.Client
}

// NewVisionExtractor extracts pages with Cloud Vision document OCR.
func NewVisionExtractor(client *visionocr.Client) PageExtractor {
	return visionExtractor{client: client}
}

func (visionExtractor) Name() string { return "vision" }

func (e visionExtractor) ExtractPage(ctx context.Context, image []byte) (PageText, error) {
	text, err := e.client.DetectDocumentText(ctx, image)
	if err != nil {
		return PageText{}, err
	}
	return PageText{Text: text}, nil
}

// cleanPageText drops a wrapping code fence some models add around plain text.
func cleanPageText(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = ""
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
