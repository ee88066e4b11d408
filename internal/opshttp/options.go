package opshttp

import (
	"net/http"

	"github.com/keithlinneman/newsfront/internal/health"
	"github.com/keithlinneman/newsfront/internal/log"
)

type Options struct {
	Port        int
	Logger      log.Logger
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// OnPanic is called for each recovered handler panic.
	OnPanic func()
}
