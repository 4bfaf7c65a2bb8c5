// Package proxyresolve merges request-level and environment proxy
// settings into a normalized form. Resolve is a pure function: no I/O.
package proxyresolve

import (
	"net/url"
	"strings"

	"github.com/use-agent/scrapeworker/models"
)

// Resolved is the normalized proxy descriptor consumed by the pipelines.
type Resolved struct {
	Server   string
	Username string
	Password string
}

// Env is the environment-level proxy fallback (config.Config fields).
type Env struct {
	Server   string
	Username string
	Password string
}

// Resolve applies the precedence request.proxyProfile > request.proxy
// (parsed) > Env (spec.md §4.2). Returns the zero value when no proxy
// applies anywhere in the chain.
func Resolve(req *models.ScrapeRequest, env Env) Resolved {
	if req.ProxyProfile != nil && req.ProxyProfile.Server != "" {
		return Resolved{
			Server:   req.ProxyProfile.Server,
			Username: req.ProxyProfile.Username,
			Password: req.ProxyProfile.Password,
		}
	}
	if req.Proxy != "" {
		return parse(req.Proxy)
	}
	if env.Server != "" {
		return Resolved{Server: env.Server, Username: env.Username, Password: env.Password}
	}
	return Resolved{}
}

// parse normalizes a raw proxy string into scheme://host:port plus
// extracted userinfo. On parse failure it returns {Server: raw}.
func parse(raw string) Resolved {
	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return Resolved{Server: raw}
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "80"
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}

	r := Resolved{Server: scheme + "://" + host + ":" + port}
	if u.User != nil {
		r.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			r.Password = pw
		}
	}
	return r
}
