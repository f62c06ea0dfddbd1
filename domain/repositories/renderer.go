package repositories

import "context"

// DiagramRenderer turns Mermaid source into an SVG document
type DiagramRenderer interface {
	Render(ctx context.Context, mermaidCode string) (string, error)
}
