// Package shutdown coordinates graceful termination of gedis-server.
//
// Components register named hooks as they start. When SIGINT/SIGTERM
// arrives, the parent context ends or Trigger is called, the hooks run in
// reverse registration order under a shared timeout.
//
// Usage:
//
//	h := shutdown.NewHandler(10*time.Second, logger)
//	h.OnShutdown("redis", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
