// Package modules contains the policy modules plugged into the flow router.
package modules

import (
	"net/http"
	"strings"

	"edge-gateway/internal/pipeline"
)

// HostPlaceholder is replaced with the request host in URL templates.
const HostPlaceholder = "{host}"

// DefaultIndexTemplate is where "/" goes unless configured otherwise.
const DefaultIndexTemplate = "https://{host}/index.html"

// Root answers requests for "/" with the host's index page and never looks
// up a main route for them.
type Root struct {
	pipeline.BaseModule
	indexTemplate string
	proxy         bool
}

// NewRoot redirects to indexTemplate, or proxies it when proxy is set.
func NewRoot(indexTemplate string, proxy bool) *Root {
	if indexTemplate == "" {
		indexTemplate = DefaultIndexTemplate
	}
	return &Root{indexTemplate: indexTemplate, proxy: proxy}
}

func (m *Root) Name() string { return "root" }

func (m *Root) Init(c *pipeline.Context) pipeline.Flow {
	if c.Request.Path == "/" {
		c.SetMainRoute(nil)
		c.SetFact(pipeline.FactRoot, true)
	}
	return pipeline.Continue()
}

func (m *Root) OnStart(c *pipeline.Context) pipeline.Flow {
	if !c.FactBool(pipeline.FactRoot) {
		return pipeline.Continue()
	}
	index := ExpandHost(m.indexTemplate, c.Request.Host)
	if m.proxy {
		c.Result = pipeline.Proxy(index)
	} else {
		c.Result = pipeline.Redirect(index, http.StatusTemporaryRedirect)
	}
	return pipeline.Break()
}

// ExpandHost fills the host placeholder of a URL template.
func ExpandHost(template, host string) string {
	return strings.ReplaceAll(template, HostPlaceholder, host)
}
