package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"
)

const systemPrompt = "You are a fire safety monitoring assistant. You inspect camera frames for fire or smoke and, when you find either, you write emergency email alerts."

// OllamaConfig holds connection details for the Ollama server
type OllamaConfig struct {
	BaseURL string
	Port    int
	Model   string
}

// OllamaService submits frames to a local Ollama vision model
type OllamaService struct {
	newAgent func() *agent.DefaultAgent
}

// NewOllamaService verifies that Ollama is reachable and prepares the provider
func NewOllamaService(ctx context.Context, cfg OllamaConfig, logger *slog.Logger) (*OllamaService, error) {
	// Check if Ollama is running
	if err := ping(ctx, fmt.Sprintf("%s:%d/api/tags", cfg.BaseURL, cfg.Port)); err != nil {
		return nil, fmt.Errorf("ollama is not reachable at %s:%d: %w", cfg.BaseURL, cfg.Port, err)
	}

	// Set up Ollama provider
	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: cfg.BaseURL,
		Port:    cfg.Port,
	})
	provider.UseModel(ctx, &types.Model{ID: cfg.Model})

	// A fresh agent per request keeps concurrent cycles from sharing history
	newAgent := func() *agent.DefaultAgent {
		return agent.NewAgent(&agent.NewAgentConfig{
			Provider:     provider,
			Logger:       logger,
			SystemPrompt: systemPrompt,
		})
	}

	return &OllamaService{newAgent: newAgent}, nil
}

// Submit sends the image and instruction to the model and returns its answer
func (s *OllamaService) Submit(ctx context.Context, image []byte, instruction string) (string, error) {
	// The agent takes images by path
	tmp, err := os.CreateTemp("", "firewatch-*.jpg")
	if err != nil {
		return "", fmt.Errorf("failed to stage image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to stage image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to stage image: %w", err)
	}

	response := s.newAgent().Run(
		ctx,
		agent.WithInput(instruction),
		agent.WithImagePath(tmp.Name()),
	)
	if response.Err != nil {
		return "", response.Err
	}

	if len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}

	// Get the model's response (not the prompt)
	return response.Messages[len(response.Messages)-1].Content, nil
}

func ping(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
