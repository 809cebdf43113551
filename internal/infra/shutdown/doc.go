// Package shutdown runs named cleanup hooks when the process receives
// SIGINT or SIGTERM, or when shutdown is triggered programmatically.
//
//	h := shutdown.NewHandler(30*time.Second, logger)
//	h.OnShutdown("scheduler", func(ctx context.Context) error { sched.Stop(); return nil })
//	err := h.Wait(ctx)
package shutdown
