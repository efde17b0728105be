package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360studio/foreman/task"
)

// ContentGenerator is the external content-production collaborator. The
// engine only consumes the returned text; it does not interpret how it was
// produced.
type ContentGenerator interface {
	// GenerateContent produces artifact text for a prompt. agentHint is an
	// optional capability tag the substrate may use for agent selection.
	GenerateContent(ctx context.Context, prompt string, docType task.Type, agentHint string) (string, error)
}

// generate wraps a content-production call in an explicit deadline. The
// timer is always released on both the success and the failure path.
func (e *Engine) generate(ctx context.Context, prompt string, docType task.Type, agentHint string) (string, error) {
	if !docType.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPhase, docType)
	}

	genCtx, cancel := context.WithTimeout(ctx, e.cfg.GenerateTimeout)
	defer cancel()

	content, err := e.generator.GenerateContent(genCtx, prompt, docType, agentHint)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrGenerateTimeout, e.cfg.GenerateTimeout)
		}
		return "", err
	}
	return content, nil
}
