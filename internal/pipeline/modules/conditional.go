package modules

import (
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/pipeline"
	"edge-gateway/internal/routing"
)

// Conditional sends requests to the switch named by the first matching
// condition of a conditional routing policy.
type Conditional struct {
	pipeline.BaseModule
	evaluator *routing.Evaluator
	logger    logging.Logger
}

func NewConditional(evaluator *routing.Evaluator, logger logging.Logger) *Conditional {
	if logger == nil {
		logger = logging.Component("conditional")
	}
	return &Conditional{evaluator: evaluator, logger: logger}
}

func (m *Conditional) Name() string { return "conditional" }

// OnStart derives only the client facts the conditions reference.
func (m *Conditional) OnStart(c *pipeline.Context) pipeline.Flow {
	main, _ := c.MainRoute()
	if main == nil || !main.Policy.IsConditional() {
		return pipeline.Continue()
	}
	c.Preload(routing.RequiredFacts(main.Policy.Conditions))
	return pipeline.Continue()
}

func (m *Conditional) OnURLExtract(c *pipeline.Context) pipeline.Flow {
	main, _ := c.MainRoute()
	if main == nil || !main.Policy.IsConditional() {
		return pipeline.Continue()
	}

	key, ok := m.evaluator.FindFirstMatch(c, main.Policy.Conditions)
	if !ok {
		return pipeline.Continue()
	}

	alt := c.ResolveRoute(key)
	if alt == nil {
		m.logger.Debug("Matched switch has no route",
			logging.String("switch", key),
			logging.String("domain", c.Request.Host),
			logging.String("path", c.Request.Path),
		)
		return pipeline.Continue()
	}
	c.OutRoute = alt
	c.SetFact(pipeline.FactMatchedSwitch, key)
	return pipeline.Continue()
}
