// Package server exposes a silo database over HTTP.
//
// Routes:
//
//	POST /query                      evaluate a query; body format by Accept
//	GET  /info[?details=true]        snapshot statistics
//	GET  /lineageDefinition/:column  YAML lineage definition of a column
//	GET  /health                     liveness and active data version
//	GET  /metrics                    Prometheus metrics, if enabled
//	     /debug/pprof/*              profiling, if enabled
//
// Errors are returned as {"error": ..., "message": ...}.
package server
