package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"training-service/config"
	"training-service/internal/constants"
	"training-service/internal/models"
)

// LLMClient talks to an OpenAI-compatible chat completions API. It plays
// the customer in simulation sessions and grades finished conversations.
type LLMClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewLLMClient(cfg config.AIConfig) *LLMClient {
	return &LLMClient{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.ChatModel,
	}
}

type chatCompletionRequest struct {
	Model          string                  `json:"model"`
	Messages       []chatCompletionMessage `json:"messages"`
	Temperature    *float64                `json:"temperature,omitempty"`
	ResponseFormat *responseFormat         `json:"response_format,omitempty"`
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
}

const customerSystemPrompt = `You are role-playing a customer contacting a support center.
Stay in character for the entire conversation. Customer profile:

Name/background: %s
Complaint: %s
Emotional state: %s

Respond with short, natural spoken sentences. React to how the agent treats you:
calm down if handled well, escalate if handled poorly. Never break character,
never mention being an AI.`

const analysisSystemPrompt = `You are a customer-service training evaluator. Given a transcript
between a trainee agent and a customer, score the agent's performance.

Reply with JSON only, in exactly this shape:
{"overall": 0-100, "empathy": 0-100, "problem_solving": 0-100, "professionalism": 0-100, "comments": "2-3 sentences of concrete feedback"}`

// InitialUtterance produces the customer's opening line for a scenario.
func (l *LLMClient) InitialUtterance(ctx context.Context, scenario *models.Scenario) (string, error) {
	messages := []chatCompletionMessage{
		{Role: "system", Content: l.customerPrompt(scenario)},
		{Role: "user", Content: "The agent has just answered the call. Deliver your opening complaint."},
	}
	return l.complete(ctx, messages, nil)
}

// NextUtterance produces the customer's reply given the conversation so far.
// The last turn is expected to be the agent's.
func (l *LLMClient) NextUtterance(ctx context.Context, scenario *models.Scenario, turns []models.Turn) (string, error) {
	messages := make([]chatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, chatCompletionMessage{Role: "system", Content: l.customerPrompt(scenario)})
	for _, turn := range turns {
		role := "user"
		if turn.Role == constants.RoleCustomer {
			role = "assistant"
		}
		messages = append(messages, chatCompletionMessage{Role: role, Content: turn.Text})
	}
	return l.complete(ctx, messages, nil)
}

// AnalyzeConversation scores a finished conversation.
func (l *LLMClient) AnalyzeConversation(ctx context.Context, scenario *models.Scenario, turns []models.Turn) (*models.FeedbackScore, error) {
	var transcript strings.Builder
	fmt.Fprintf(&transcript, "Scenario: %s\nComplaint: %s\n\n", scenario.Title, scenario.Complaint)
	for _, turn := range turns {
		fmt.Fprintf(&transcript, "[%s] %s\n", turn.Role, turn.Text)
	}

	messages := []chatCompletionMessage{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: transcript.String()},
	}
	content, err := l.complete(ctx, messages, &responseFormat{Type: "json_object"})
	if err != nil {
		return nil, err
	}

	feedback := &models.FeedbackScore{}
	if err := json.Unmarshal([]byte(content), feedback); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	return feedback, nil
}

func (l *LLMClient) customerPrompt(scenario *models.Scenario) string {
	return fmt.Sprintf(customerSystemPrompt, scenario.CustomerBio, scenario.Complaint, scenario.EmotionTag)
}

func (l *LLMClient) complete(ctx context.Context, messages []chatCompletionMessage, format *responseFormat) (string, error) {
	request := chatCompletionRequest{
		Model:          l.model,
		Messages:       messages,
		ResponseFormat: format,
	}
	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
