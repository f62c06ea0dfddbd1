package mermaid

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/repositories"
)

const (
	defaultRenderURL     = "https://kroki.io"
	defaultRenderTimeout = 15 * time.Second
	maxSVGBytes          = 5 << 20
)

// RendererConfig configures a Kroki compatible render service
type RendererConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewRendererConfigFromEnv reads MERMAID_RENDER_URL
func NewRendererConfigFromEnv() RendererConfig {
	return RendererConfig{BaseURL: os.Getenv("MERMAID_RENDER_URL")}
}

// HTTPRenderer posts Mermaid source to {base}/mermaid/svg and returns the SVG body
type HTTPRenderer struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.DiagramRenderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer creates a renderer, applying defaults for unset values
func NewHTTPRenderer(config RendererConfig, logger *zap.Logger) *HTTPRenderer {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultRenderURL
		logger.Info("Using default Mermaid render URL", zap.String("baseURL", baseURL))
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}

	return &HTTPRenderer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Render implements repositories.DiagramRenderer
func (r *HTTPRenderer) Render(ctx context.Context, mermaidCode string) (string, error) {
	if strings.TrimSpace(mermaidCode) == "" {
		return "", fmt.Errorf("mermaid code cannot be empty")
	}

	url := r.baseURL + "/mermaid/svg"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(mermaidCode))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "image/svg+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSVGBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read render response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.Error("Mermaid render service returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(body)))
		return "", fmt.Errorf("render service returned error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	svg := string(body)
	if !strings.Contains(svg, "<svg") {
		return "", fmt.Errorf("render service returned a non-SVG document")
	}
	return svg, nil
}

// MockRenderer wraps the source in a minimal SVG document
type MockRenderer struct {
	Err error
}

var _ repositories.DiagramRenderer = (*MockRenderer)(nil)

// Render implements repositories.DiagramRenderer
func (m *MockRenderer) Render(ctx context.Context, mermaidCode string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg"><desc>%d bytes of mermaid</desc></svg>`, len(mermaidCode)), nil
}
