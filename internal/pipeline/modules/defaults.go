package modules

import (
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/pipeline"
	"edge-gateway/internal/routing"
)

// Config selects the behaviour of the default module set.
type Config struct {
	IndexTemplate    string
	ProxyIndex       bool
	NotFoundTemplate string
}

// Defaults returns the standard module order: root, not-found, redirect-only,
// conditional, params, hit registration.
func Defaults(cfg Config, evaluator *routing.Evaluator, registrar HitRegistrar, logger logging.Logger) []pipeline.Module {
	return []pipeline.Module{
		NewRoot(cfg.IndexTemplate, cfg.ProxyIndex),
		NewNotFound(cfg.NotFoundTemplate),
		NewRedirectOnly(),
		NewConditional(evaluator, logger),
		NewParams(logger),
		NewHitRegister(registrar, logger),
	}
}
