package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Capability interface using Google Gemini.
// Extraction uses a vision-capable model; classification uses a cheaper
// text model since it only has to pick a label or answer YES/NO.
type Gemini struct {
	client      *genai.Client
	visionModel *genai.GenerativeModel
	textModel   *genai.GenerativeModel
}

// NewGemini creates a new Gemini Capability instance
func NewGemini(apiKey string, visionModelName, textModelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if visionModelName == "" {
		visionModelName = "gemini-2.5-pro"
	}
	if textModelName == "" {
		textModelName = "gemini-2.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	visionModel := client.GenerativeModel(visionModelName)
	textModel := client.GenerativeModel(textModelName)

	// Zero temperature for deterministic extraction and classification
	visionModel.SetTemperature(0)
	textModel.SetTemperature(0)

	return &Gemini{
		client:      client,
		visionModel: visionModel,
		textModel:   textModel,
	}, nil
}

// ExtractStructured sends the rendered invoice image and the extraction
// prompt to the vision model
func (g *Gemini) ExtractStructured(ctx context.Context, imagePNG []byte, prompt string) (string, Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	parts := []genai.Part{
		genai.ImageData("png", imagePNG),
		genai.Text(prompt),
	}

	resp, err := g.visionModel.GenerateContent(ctx, parts...)
	if err != nil {
		return "", Usage{}, fmt.Errorf("generating content: %w", err)
	}

	return responseText(resp)
}

// ClassifyText sends a classification prompt to the text model
func (g *Gemini) ClassifyText(ctx context.Context, system, prompt string) (string, Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	parts := []genai.Part{genai.Text(prompt)}
	if system != "" {
		parts = []genai.Part{genai.Text(system + "\n\n" + prompt)}
	}

	resp, err := g.textModel.GenerateContent(ctx, parts...)
	if err != nil {
		return "", Usage{}, fmt.Errorf("generating content: %w", err)
	}

	return responseText(resp)
}

// responseText extracts the text parts and token usage from a Gemini response
func responseText(resp *genai.GenerateContentResponse) (string, Usage, error) {
	var usage Usage
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", usage, fmt.Errorf("no response from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	return strings.TrimSpace(text.String()), usage, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
