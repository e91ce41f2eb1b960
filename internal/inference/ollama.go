package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama implements the Capability interface using Ollama.
// Recommended vision models for invoice extraction (in order of recommendation):
//   - llava:1.6 (best balance of accuracy and speed)
//   - llava:latest (general purpose vision model)
//   - qwen2-vl:7b (good OCR capabilities)
//   - bakllava (alternative vision model)
//
// Classification only needs a small text model (e.g. llama3.2:3b).
type Ollama struct {
	baseURL     string
	visionModel string
	textModel   string
	client      *http.Client
}

// NewOllama creates a new Ollama Capability instance
func NewOllama(baseURL string, visionModelName, textModelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if visionModelName == "" {
		visionModelName = "llava"
	}
	if textModelName == "" {
		textModelName = visionModelName
	}

	return &Ollama{
		baseURL:     baseURL,
		visionModel: visionModelName,
		textModel:   textModelName,
		client: &http.Client{
			Timeout: 120 * time.Second, // Ollama can be slower, especially for vision models
		},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Images   []string        `json:"images,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// ExtractStructured sends the rendered invoice image and the extraction
// prompt to the vision model
func (o *Ollama) ExtractStructured(ctx context.Context, imagePNG []byte, prompt string) (string, Usage, error) {
	imageBase64 := base64.StdEncoding.EncodeToString(imagePNG)

	reqBody := ollamaChatRequest{
		Model:  o.visionModel,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading and extracting information from invoices. You must carefully read all text in images and extract accurate information.",
			},
			{
				Role:    "user",
				Content: prompt,
			},
		},
		Images: []string{imageBase64},
	}

	return o.chat(ctx, reqBody, 120*time.Second)
}

// ClassifyText sends a classification prompt to the text model
func (o *Ollama) ClassifyText(ctx context.Context, system, prompt string) (string, Usage, error) {
	messages := []ollamaMessage{}
	if system != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: system})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: prompt})

	reqBody := ollamaChatRequest{
		Model:    o.textModel,
		Stream:   false,
		Messages: messages,
	}

	return o.chat(ctx, reqBody, 60*time.Second)
}

// chat performs a single request against Ollama's chat API
func (o *Ollama) chat(ctx context.Context, reqBody ollamaChatRequest, timeout time.Duration) (string, Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", Usage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", Usage{}, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", Usage{}, fmt.Errorf("decoding response: %w", err)
	}

	usage := Usage{
		PromptTokens:     chatResp.PromptEvalCount,
		CompletionTokens: chatResp.EvalCount,
	}

	return strings.TrimSpace(chatResp.Message.Content), usage, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
