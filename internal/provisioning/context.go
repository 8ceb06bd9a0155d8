package provisioning

import (
	"context"

	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/platform/hcloud"
)

// Context wraps the dependencies shared by every provisioning step.
type Context struct {
	context.Context
	Config   *config.Config
	Infra    hcloud.InfrastructureManager
	Observer Observer
	Timeouts *config.Timeouts
}

// NewContext creates a provisioning context. A nil observer logs to the console.
func NewContext(ctx context.Context, cfg *config.Config, infra hcloud.InfrastructureManager, observer Observer) *Context {
	if observer == nil {
		observer = NewConsoleObserver()
	}
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Infra:    infra,
		Observer: observer,
		Timeouts: config.LoadTimeouts(),
	}
}

// WithContext returns a shallow copy bound to ctx, e.g. an errgroup context.
func (c *Context) WithContext(ctx context.Context) *Context {
	cp := *c
	cp.Context = ctx
	return &cp
}

// WithObserver returns a shallow copy logging through o.
func (c *Context) WithObserver(o Observer) *Context {
	cp := *c
	cp.Observer = o
	return &cp
}
