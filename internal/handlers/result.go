package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/pipeline"
)

func (h *Handlers) writeResult(w http.ResponseWriter, r *http.Request, result *pipeline.Result) {
	if result == nil {
		result = pipeline.NotFound("")
	}

	switch result.Kind {
	case pipeline.ResultRedirect:
		setCacheControl(w, result)
		redirect(w, result.Location, result.StatusCode)
	case pipeline.ResultProxy:
		h.serveProxy(w, r, result.Location)
	case pipeline.ResultNative:
		link, ok := nativeLink(result.Location)
		if !ok {
			h.logger.Warn("Refusing native hand-off", logging.String("location", result.Location))
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		setCacheControl(w, result)
		writeNativePage(w, r, link)
	default:
		w.Header().Set("Cache-Control", "no-store")
		if result.Location != "" {
			redirect(w, result.Location, result.StatusCode)
			return
		}
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	}
}

func setCacheControl(w http.ResponseWriter, result *pipeline.Result) {
	if secs := int(result.CacheTTL.Seconds()); secs > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", secs))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
}

// redirect writes the Location verbatim. http.Redirect would rewrite
// relative targets against the request path.
func redirect(w http.ResponseWriter, location string, status int) {
	if status < 300 || status > 399 {
		status = http.StatusFound
	}
	w.Header().Set("Location", location)
	w.WriteHeader(status)
}

// serveProxy fetches exactly location, not location joined with the request path.
func (h *Handlers) serveProxy(w http.ResponseWriter, r *http.Request, location string) {
	target, err := url.Parse(location)
	if err != nil || target.Host == "" {
		h.logger.Error("Invalid proxy target", err, logging.String("location", location))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL = target
			pr.Out.Host = target.Host
			pr.SetXForwarded()
		},
		Transport: h.proxy,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.WithContext(r.Context()).Error("Proxy request failed", err, logging.String("target", location))
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	proxy.ServeHTTP(w, r)
}

var nativePage = template.Must(template.New("native").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="0;url={{.}}">
<title>Redirecting</title>
</head>
<body>
<p>Opening <a href="{{.}}">{{.}}</a></p>
<script>window.location.replace({{.}});</script>
</body>
</html>
`))

var scriptSchemes = []string{"javascript", "vbscript", "data"}

// nativeLink admits custom app schemes, which html/template would otherwise
// filter out, but never script-bearing ones.
func nativeLink(location string) (template.URL, bool) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" {
		return "", false
	}
	for _, s := range scriptSchemes {
		if strings.EqualFold(u.Scheme, s) {
			return "", false
		}
	}
	return template.URL(location), true
}

// writeNativePage hands off to an app link that browsers will not follow
// from a 3xx.
func writeNativePage(w http.ResponseWriter, r *http.Request, link template.URL) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if err := nativePage.Execute(w, link); err != nil {
		logging.WithContext(r.Context()).Error("Failed to render native page", err)
	}
}
