package routing

import (
	"cmp"
	"context"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"edge-gateway/internal/cache"
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/models"
)

const dateLayout = "2006-01-02"

// Evaluator matches request facts against condition trees.
//
// Sibling predicates of a node combine with the node's default_operator,
// AND when it is absent. A node without any predicate or child never matches.
type Evaluator struct {
	draw     func() int
	programs *cache.Cache[*vm.Program]
	logger   logging.Logger
}

// EvaluatorOption customises an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithRandom replaces the uniform [0,100) draw used by random predicates.
func WithRandom(draw func() int) EvaluatorOption {
	return func(e *Evaluator) { e.draw = draw }
}

func WithLogger(logger logging.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.logger = logger }
}

// NewEvaluator creates an evaluator with a bounded cache of compiled expressions.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	programs, err := cache.New[*vm.Program](cache.Options{Capacity: 1024})
	if err != nil {
		panic("routing: expression cache: " + err.Error())
	}
	e := &Evaluator{
		draw:     func() int { return rand.IntN(100) },
		programs: programs,
		logger:   logging.Component("routing"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindFirstMatch returns the key of the first condition that holds.
func (e *Evaluator) FindFirstMatch(src FactSource, conditions []models.ConditionalRoute) (string, bool) {
	for i := range conditions {
		if e.Evaluate(src, &conditions[i].Condition) {
			return conditions[i].Key, true
		}
	}
	return "", false
}

// Evaluate reports whether c holds for src. Random predicates draw afresh on
// every call.
func (e *Evaluator) Evaluate(src FactSource, c *models.Condition) bool {
	if c == nil {
		return false
	}

	results := make([]bool, 0, 8)
	push := func(ok bool) { results = append(results, ok) }

	if c.Country != nil {
		push(matchString(src.Country(), c.Country))
	}
	if c.Language != nil {
		push(matchString(src.Language(), c.Language))
	}
	if c.UserAgent != nil {
		push(matchString(src.UserAgentFamily(), c.UserAgent))
	}
	if c.OS != nil {
		push(matchString(src.OSFamily(), c.OS))
	}
	if c.Device != nil {
		push(matchString(src.DeviceFamily(), c.Device))
	}
	if c.Random != nil {
		push(matchOrdered(e.draw(), c.Random))
	}
	if c.DayOfMonth != nil || c.DayOfWeek != nil || c.Month != nil || c.Date != nil {
		now := src.Now()
		if c.DayOfMonth != nil {
			push(matchOrdered(now.Day(), c.DayOfMonth))
		}
		if c.DayOfWeek != nil {
			push(matchOrdered(int(now.Weekday()), c.DayOfWeek))
		}
		if c.Month != nil {
			push(matchOrdered(int(now.Month()), c.Month))
		}
		if c.Date != nil {
			push(matchOrdered(now.Format(dateLayout), c.Date))
		}
	}
	if c.Expr != "" {
		push(e.evalExpr(src, c.Expr))
	}
	if len(c.And) > 0 {
		all := true
		for i := range c.And {
			if !e.Evaluate(src, &c.And[i]) {
				all = false
				break
			}
		}
		push(all)
	}
	if len(c.Or) > 0 {
		anyOf := false
		for i := range c.Or {
			if e.Evaluate(src, &c.Or[i]) {
				anyOf = true
				break
			}
		}
		push(anyOf)
	}

	if len(results) == 0 {
		return false
	}
	if c.DefaultOperator == models.OperatorOr {
		return slices.Contains(results, true)
	}
	return !slices.Contains(results, false)
}

func (e *Evaluator) evalExpr(src FactSource, source string) bool {
	program, _, err := e.programs.GetWith(context.Background(), source, func(context.Context) (*vm.Program, bool, error) {
		p, err := expr.Compile(source, expr.Env(exprEnv{}), expr.AsBool())
		if err != nil {
			return nil, false, err
		}
		return p, true, nil
	})
	if err != nil {
		e.logger.Warn("Invalid routing expression", logging.String("expr", source), logging.Err(err))
		return false
	}

	now := src.Now()
	out, err := expr.Run(program, exprEnv{
		UA:         strings.ToLower(src.UserAgentFamily()),
		OS:         strings.ToLower(src.OSFamily()),
		Device:     strings.ToLower(src.DeviceFamily()),
		Country:    strings.ToLower(src.Country()),
		Language:   strings.ToLower(src.Language()),
		Random:     e.draw(),
		Date:       now.Format(dateLayout),
		DayOfWeek:  int(now.Weekday()),
		DayOfMonth: now.Day(),
		Month:      int(now.Month()),
		Hour:       now.Hour(),
	})
	if err != nil {
		e.logger.Warn("Routing expression failed", logging.String("expr", source), logging.Err(err))
		return false
	}
	matched, _ := out.(bool)
	return matched
}

// exprEnv is the variable set visible to expression predicates.
type exprEnv struct {
	UA         string `expr:"ua"`
	OS         string `expr:"os"`
	Device     string `expr:"device"`
	Country    string `expr:"country"`
	Language   string `expr:"language"`
	Random     int    `expr:"random"`
	Date       string `expr:"date"`
	DayOfWeek  int    `expr:"day_of_week"`
	DayOfMonth int    `expr:"day_of_month"`
	Month      int    `expr:"month"`
	Hour       int    `expr:"hour"`
}

// matchString compares case-insensitively. Every comparison that is set must
// hold; a predicate with none set matches nothing.
func matchString(value string, p *models.StringPredicate) bool {
	value = strings.ToLower(value)
	checked := false
	if p.Equals != nil {
		checked = true
		if value != strings.ToLower(*p.Equals) {
			return false
		}
	}
	if p.StartsWith != nil {
		checked = true
		if !strings.HasPrefix(value, strings.ToLower(*p.StartsWith)) {
			return false
		}
	}
	if p.EndsWith != nil {
		checked = true
		if !strings.HasSuffix(value, strings.ToLower(*p.EndsWith)) {
			return false
		}
	}
	if len(p.In) > 0 {
		checked = true
		if !slices.ContainsFunc(p.In, func(s string) bool { return strings.EqualFold(s, value) }) {
			return false
		}
	}
	return checked
}

func matchOrdered[T cmp.Ordered](value T, p *models.OrderedPredicate[T]) bool {
	checked := false
	if p.Equals != nil {
		checked = true
		if value != *p.Equals {
			return false
		}
	}
	if p.Greater != nil {
		checked = true
		if value <= *p.Greater {
			return false
		}
	}
	if p.Less != nil {
		checked = true
		if value >= *p.Less {
			return false
		}
	}
	if len(p.In) > 0 {
		checked = true
		if !slices.Contains(p.In, value) {
			return false
		}
	}
	return checked
}
