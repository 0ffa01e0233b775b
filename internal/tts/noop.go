package tts

import (
	"context"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

var _ domain.Renderer = (*NoOp)(nil)

// NoOp is a renderer that does nothing. Used when voice output is disabled.
type NoOp struct {
	log *logger.Logger
}

// NewNoOp creates a no-op renderer.
func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log}
}

// Render only logs what would have been said.
func (n *NoOp) Render(ctx context.Context, text, outputPath string) error {
	n.log.Debug("no-op: would say %q", truncate(text, 80))
	return nil
}
