package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/repositories"
)

const diagramPrompt = `You are a diagram assistant. Convert the following text description into valid Mermaid diagram code.
Do not include any explanations or comments outside the Mermaid code block.
Your response should contain ONLY the Mermaid code.`

// Placeholder diagrams
const (
	InitialDiagram = "graph TD\n A[Default] --> B[No diagram generated yet]"
	EmptyDiagram   = "graph TD\n  A[No Content] --> B[No diagram generated]"
	FailedDiagram  = "graph TD\n A[Error] --> B[Failed to generate diagram]"
)

// DefaultDiagramTimeout bounds a single text-to-diagram completion
const DefaultDiagramTimeout = 10 * time.Second

var diagramKeywords = []string{
	"show me", "analyse", "analyze", "diagram", "flow chart", "flowchart",
	"gantt chart", "class diagram", "sequence diagram", "er diagram",
	"entity relationship", "state diagram", "visualize", "visualization",
	"visualise", "graph", "draw", "illustrate", "map out", "mindmap",
}

var (
	fencedMermaid = regexp.MustCompile("```mermaid\\s+([\\s\\S]+?)\\s+```")
	arrowLabel    = regexp.MustCompile(`-->\|([^>]*)\|>`)
	classTrailing = regexp.MustCompile(`class\s+(\w+)\s+(\w+)\.`)
	trailingSemi  = regexp.MustCompile(`(?m);\s*$`)
)

// WantsDiagram reports whether message asks for something visual
func WantsDiagram(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range diagramKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// ExtractMermaid returns the body of a ```mermaid fenced block, or the trimmed content
func ExtractMermaid(content string) string {
	if m := fencedMermaid.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}

// FixSyntax repairs mistakes models commonly make in Mermaid source
func FixSyntax(code string) string {
	code = arrowLabel.ReplaceAllString(code, "-->|$1|")
	code = classTrailing.ReplaceAllString(code, "class $1 $2")
	return trailingSemi.ReplaceAllString(code, "")
}

// DiagramConfig holds configuration for the diagram service
type DiagramConfig struct {
	UploadsDir string
	Timeout    time.Duration
}

// RenderedDiagram is the current diagram together with its SVG
type RenderedDiagram struct {
	Code string
	SVG  string
	Path string
}

// DiagramService generates, remembers and renders Mermaid diagrams
type DiagramService struct {
	llm        repositories.LargeLanguageModel
	renderer   repositories.DiagramRenderer
	uploadsDir string
	timeout    time.Duration
	logger     *zap.Logger

	mu      sync.RWMutex
	current string
}

// NewDiagramService creates a new diagram service
func NewDiagramService(
	llm repositories.LargeLanguageModel,
	renderer repositories.DiagramRenderer,
	config DiagramConfig,
	logger *zap.Logger,
) *DiagramService {
	if config.UploadsDir == "" {
		config.UploadsDir = "uploads"
		logger.Info("Using default uploads directory", zap.String("dir", config.UploadsDir))
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultDiagramTimeout
	}

	return &DiagramService{
		llm:        llm,
		renderer:   renderer,
		uploadsDir: config.UploadsDir,
		timeout:    config.Timeout,
		logger:     logger,
		current:    InitialDiagram,
	}
}

// Generate converts explanatory text into Mermaid source and makes it the current diagram.
// Failures produce a placeholder diagram rather than an error.
func (d *DiagramService) Generate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		d.logger.Warn("No text content to build a diagram from")
		d.setCurrent(EmptyDiagram)
		return EmptyDiagram
	}

	content, err := d.llm.Complete(ctx, repositories.CompletionRequest{
		SystemPrompt: diagramPrompt,
		UserMessage:  fmt.Sprintf("Convert this text into an appropriate Mermaid diagram:\n%s without syntax errors", text),
		Temperature:  0.7,
		TopP:         1,
		MaxTokens:    1024,
		Format:       repositories.ResponseFormatText,
		Timeout:      d.timeout,
	})
	if err != nil {
		d.logger.Error("Failed to generate Mermaid diagram", zap.Error(err))
		d.setCurrent(FailedDiagram)
		return FailedDiagram
	}

	code := FixSyntax(ExtractMermaid(content))
	if code == "" {
		code = EmptyDiagram
	}

	d.logger.Debug("Generated Mermaid diagram", zap.String("code", code))
	d.setCurrent(code)
	return code
}

// Current returns the most recently generated diagram source
func (d *DiagramService) Current() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// RenderCurrent renders the current diagram and saves the SVG under the uploads directory
func (d *DiagramService) RenderCurrent(ctx context.Context) (RenderedDiagram, error) {
	code := d.Current()

	svg, err := d.renderer.Render(ctx, code)
	if err != nil {
		return RenderedDiagram{}, fmt.Errorf("failed to render diagram: %w", err)
	}

	result := RenderedDiagram{Code: code, SVG: svg}

	if err := os.MkdirAll(d.uploadsDir, 0o755); err != nil {
		d.logger.Warn("Failed to create uploads directory", zap.Error(err))
		return result, nil
	}

	path := filepath.Join(d.uploadsDir, fmt.Sprintf("diagram-%s.svg", uuid.NewString()))
	if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
		d.logger.Warn("Failed to save rendered diagram", zap.String("path", path), zap.Error(err))
		return result, nil
	}

	result.Path = path
	return result, nil
}

func (d *DiagramService) setCurrent(code string) {
	d.mu.Lock()
	d.current = code
	d.mu.Unlock()
}
