package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redbirdapp/redbird/internal/model"
)

const (
	openaiBaseURL        = "https://api.openai.com/v1"
	openaiModel          = "gpt-4o"
	openaiTimeout        = 60 * time.Second
	openaiMaxRetries     = 3
	openaiInitialBackoff = 1 * time.Second

	summaryMaxTokens   = 1000
	summaryTemperature = 0.3
	categoryMaxTokens  = 20
	categoryTemp       = 0.1

	// Bill text beyond this many characters is truncated before prompting
	maxBillTextChars = 12000

	notAvailable    = "Information not available"
	defaultCategory = "Other"
)

// billCategories are the accepted answers for Categorize
var billCategories = []string{
	"Housing", "Health", "Crime", "Education",
	"Environment", "Transportation", "Budget", "Other",
}

// OpenAIClient generates structured bill analyses via the OpenAI chat API
type OpenAIClient struct {
	baseURL string
	apiKey  string
	backoff time.Duration
	client  *http.Client
}

// NewOpenAIClient creates a new OpenAI API client
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		baseURL: openaiBaseURL,
		apiKey:  apiKey,
		backoff: openaiInitialBackoff,
		client: &http.Client{
			Timeout: openaiTimeout,
		},
	}
}

// Configured reports whether an API key is set
func (c *OpenAIClient) Configured() bool {
	return c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// summaryResult is the JSON document the model is asked to produce.
// key_provisions is kept raw because models occasionally return a bare
// string instead of a list.
type summaryResult struct {
	Title         string          `json:"title"`
	Summary       string          `json:"summary"`
	KeyProvisions json.RawMessage `json:"key_provisions"`
	Impact        string          `json:"impact"`
	Status        string          `json:"status"`
	FiscalImpact  string          `json:"fiscal_impact"`
	EffectiveDate string          `json:"effective_date"`
	Urgency       string          `json:"urgency"`
}

// Summarize generates a structured analysis of a bill. A response the model
// mangles beyond repair yields (nil, nil) rather than an error, so callers
// can persist the bill without enrichment.
func (c *OpenAIClient) Summarize(ctx context.Context, title, billText, billID string) (*model.AIAnalysis, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("openai api key not configured")
	}

	if len(billText) > maxBillTextChars {
		billText = billText[:maxBillTextChars]
	}

	prompt := fmt.Sprintf(`Analyze the following California legislative bill and provide a comprehensive structured analysis in JSON format.

Bill ID: %s
Title: %s

Full Text:
%s

Provide a JSON response with the following structure:
{
    "title": "Clear, concise title (improved if needed)",
    "summary": "3-4 sentence plain English summary explaining what this bill does, why it matters, and its main goals",
    "key_provisions": [
        "What it establishes or changes",
        "Implementation details",
        "Requirements or restrictions",
        "Funding or timeline if applicable"
    ],
    "impact": "Who this affects (individuals, businesses, organizations), how it affects them, and potential benefits or concerns",
    "status": "Current legislative status in plain English",
    "fiscal_impact": "Any costs, savings, or financial implications mentioned",
    "effective_date": "When this would take effect if passed",
    "urgency": "Whether this is marked as urgency legislation and why"
}

Guidelines:
- Use plain English that any citizen can understand
- Explain technical terms when necessary
- Focus on practical implications for real people
- If information is not available in the text, use "Not specified" rather than guessing`, billID, title, billText)

	reqBody := chatRequest{
		Model: openaiModel,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: "You are an expert at analyzing legislative bills and creating clear, " +
					"accessible summaries for the general public. Always respond with valid JSON.",
			},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		MaxTokens:      summaryMaxTokens,
		Temperature:    summaryTemperature,
	}

	content, err := c.complete(ctx, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary for %s: %w", billID, err)
	}
	if content == "" {
		return nil, nil
	}

	var result summaryResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, nil
	}

	if result.Title == "" {
		result.Title = notAvailable
	}
	if result.Summary == "" {
		result.Summary = notAvailable
	}
	if result.Impact == "" {
		result.Impact = notAvailable
	}

	return &model.AIAnalysis{
		Title:         result.Title,
		Summary:       result.Summary,
		KeyProvisions: coerceProvisions(result.KeyProvisions),
		Impact:        result.Impact,
		Status:        result.Status,
		FiscalImpact:  result.FiscalImpact,
		EffectiveDate: result.EffectiveDate,
		Urgency:       result.Urgency,
	}, nil
}

// coerceProvisions normalizes key_provisions into a string list
func coerceProvisions(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{notAvailable}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}
	return []string{string(raw)}
}

// Categorize assigns a bill to one of the fixed categories. Any failure,
// and any answer outside the known set, yields the default category.
func (c *OpenAIClient) Categorize(ctx context.Context, title, abstract string) (string, error) {
	if !c.Configured() {
		return defaultCategory, fmt.Errorf("openai api key not configured")
	}

	prompt := fmt.Sprintf(`Categorize this California legislative bill into one of these categories:
- Housing
- Health
- Crime
- Education
- Environment
- Transportation
- Budget
- Other

Title: %s
Abstract: %s

Respond with just the category name.`, title, abstract)

	reqBody := chatRequest{
		Model: openaiModel,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: "You are an expert at categorizing legislative bills. " +
					"Respond with only the category name.",
			},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   categoryMaxTokens,
		Temperature: categoryTemp,
	}

	content, err := c.complete(ctx, reqBody)
	if err != nil {
		return defaultCategory, fmt.Errorf("failed to categorize bill: %w", err)
	}

	category := strings.TrimSpace(content)
	for _, known := range billCategories {
		if strings.EqualFold(category, known) {
			return known, nil
		}
	}
	return defaultCategory, nil
}

// complete posts a chat completion request and returns the first choice's content
func (c *OpenAIClient) complete(ctx context.Context, reqBody chatRequest) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	body, err := c.postWithRetry(ctx, c.baseURL+"/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse completion response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai api error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// postWithRetry performs an HTTP POST with exponential backoff retry.
// Rate limits and server errors are retried; other client errors are not.
func (c *OpenAIClient) postWithRetry(ctx context.Context, reqURL string, payload []byte) ([]byte, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt < openaiMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("openai request failed (HTTP %d)", resp.StatusCode)
		default:
			return nil, fmt.Errorf("openai request failed (HTTP %d): %s", resp.StatusCode, string(body))
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", openaiMaxRetries, lastErr)
}
