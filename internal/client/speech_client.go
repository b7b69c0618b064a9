package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"training-service/config"
)

// SpeechClient handles speech-to-text and text-to-speech through an
// OpenAI-compatible audio API.
type SpeechClient struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	speechModel string
	voiceModel  string
}

func NewSpeechClient(cfg config.AIConfig) *SpeechClient {
	return &SpeechClient{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		speechModel: cfg.SpeechModel,
		voiceModel:  cfg.VoiceModel,
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe converts recorded agent audio into text.
func (s *SpeechClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.WriteField("model", s.speechModel); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response transcriptionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Text), nil
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize renders customer speech for the given text. The voice is
// picked from the scenario's emotion tag so an angry customer sounds
// different from a confused one.
func (s *SpeechClient) Synthesize(ctx context.Context, text, emotionTag string) ([]byte, error) {
	request := speechRequest{
		Model: s.voiceModel,
		Input: text,
		Voice: voiceForEmotion(emotionTag),
	}
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/speech", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("speech API error (status %d): %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

func voiceForEmotion(emotionTag string) string {
	switch emotionTag {
	case "angry", "frustrated":
		return "onyx"
	case "anxious", "confused":
		return "nova"
	default:
		return "alloy"
	}
}
