package handlers

import (
	"go.uber.org/zap"

	"github.com/pedrogk/msgmux/internal/session"
)

// ReadinessPinger is the slice of the snapshot repository the readiness
// probe checks.
type ReadinessPinger interface {
	Ping() error
}

type Handler struct {
	manager *session.Manager
	repo    ReadinessPinger
	logger  *zap.Logger
}

func NewHandler(manager *session.Manager, repo ReadinessPinger, logger *zap.Logger) *Handler {
	return &Handler{
		manager: manager,
		repo:    repo,
		logger:  logger,
	}
}
