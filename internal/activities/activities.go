// Package activities implements the Temporal activities invoked by the
// compliance workflow: specialist execution, oracle routing decisions, and
// stream event emission.
package activities

import (
	"go.uber.org/zap"

	"github.com/claritymed/regassist/internal/config"
	"github.com/claritymed/regassist/internal/knowledge"
	"github.com/claritymed/regassist/internal/oracle"
)

// Activities bundles the dependencies specialists need. Everything is
// injected explicitly; nothing reaches for ambient globals.
type Activities struct {
	knowledge  *knowledge.Manager
	decider    oracle.Decider
	thresholds config.GapThresholds
	logger     *zap.Logger
}

func NewActivities(km *knowledge.Manager, decider oracle.Decider, thresholds config.GapThresholds, logger *zap.Logger) *Activities {
	return &Activities{
		knowledge:  km,
		decider:    decider,
		thresholds: thresholds,
		logger:     logger,
	}
}
