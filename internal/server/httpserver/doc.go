// Package httpserver exposes the admin endpoints of moeckpt-server:
//
//	GET  /health                  liveness
//	GET  /ready                   200 once the scheduler is running
//	GET  /metrics                 Prometheus metrics
//	GET  /checkpoints             latest checkpoint per component
//	POST /checkpoint              run a save cycle now
//	POST /checkpoint/{component}  save one component now
//
// JSON responses share the Response envelope.
package httpserver
