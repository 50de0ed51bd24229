package pipeline

// Module hooks into the flow. Hooks run in registration order within a step.
type Module interface {
	Name() string
	// Init runs once before the walk, before the main route is resolved.
	Init(c *Context) Flow
	OnStart(c *Context) Flow
	OnURLExtract(c *Context) Flow
	OnRegister(c *Context) Flow
	OnBuildResult(c *Context) Flow
	OnEnd(c *Context) Flow
}

// BaseModule continues on every hook. Modules embed it and override what they need.
type BaseModule struct{}

func (BaseModule) Init(*Context) Flow          { return Continue() }
func (BaseModule) OnStart(*Context) Flow       { return Continue() }
func (BaseModule) OnURLExtract(*Context) Flow  { return Continue() }
func (BaseModule) OnRegister(*Context) Flow    { return Continue() }
func (BaseModule) OnBuildResult(*Context) Flow { return Continue() }
func (BaseModule) OnEnd(*Context) Flow         { return Continue() }

func hook(m Module, step Step, c *Context) Flow {
	switch step {
	case StepStart:
		return m.OnStart(c)
	case StepURLExtract:
		return m.OnURLExtract(c)
	case StepRegister:
		return m.OnRegister(c)
	case StepBuildResult:
		return m.OnBuildResult(c)
	case StepEnd:
		return m.OnEnd(c)
	default:
		return Continue()
	}
}
