// Package shutdown coordinates graceful termination of salesdesk-proxy.
//
// Wait blocks until SIGINT, SIGTERM or context cancellation, then runs the
// registered hooks newest first under one shared deadline:
//
//	h := shutdown.NewHandler(10*time.Second, shutdown.WithLogger(log))
//	h.OnShutdown("http server", srv.Shutdown)
//	return h.Wait(ctx)
package shutdown
