package middleware

import "github.com/aretw0/tapestry/pkg/ports"

// Middleware allows wrapping a LogSink to add behavior.
type Middleware func(ports.LogSink) ports.LogSink

// Chain applies middlewares so that the first one sees entries first.
func Chain(sink ports.LogSink, mws ...Middleware) ports.LogSink {
	for i := len(mws) - 1; i >= 0; i-- {
		sink = mws[i](sink)
	}
	return sink
}
