package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/config"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

// TextGenerator is the chat-completions client used for question
// generation and answer evaluation.
type TextGenerator struct {
	cfg    *config.EngineConfig
	client *http.Client
}

// NewTextGenerator creates a text generator client.
func NewTextGenerator(cfg *config.EngineConfig) (*TextGenerator, error) {
	if cfg.LLMAPIKey == "" {
		return nil, ErrMissingLLMKey
	}
	return &TextGenerator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.CallTimeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the conversation history plus the prompt and returns the
// model's reply.
func (g *TextGenerator) Generate(ctx context.Context, prompt string, history []types.ConversationTurn) types.GenerationResult {
	messages := make([]chatMessage, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		if turn.Role == types.RoleInterviewer {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(chatRequest{Model: g.cfg.LLMModel, Messages: messages})
	if err != nil {
		return types.GenerationResult{Success: false, Err: fmt.Sprintf("generation request encode failed: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.LLMURL, bytes.NewReader(payload))
	if err != nil {
		return types.GenerationResult{Success: false, Err: fmt.Sprintf("generation request build failed: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.LLMAPIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return types.GenerationResult{Success: false, Err: fmt.Sprintf("generation call failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return types.GenerationResult{Success: false, Err: fmt.Sprintf("generation read failed: %v", err)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return types.GenerationResult{Success: false, Err: fmt.Sprintf("generation response parse failed: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("generation status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = fmt.Sprintf("%s: %s", msg, parsed.Error.Message)
		}
		return types.GenerationResult{Success: false, Err: msg}
	}
	if len(parsed.Choices) == 0 {
		return types.GenerationResult{Success: false, Err: "generation returned no choices"}
	}

	return types.GenerationResult{Success: true, Content: parsed.Choices[0].Message.Content}
}
