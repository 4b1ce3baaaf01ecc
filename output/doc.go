// Package output serializes query results as NDJSON, JSON or an Apache
// Arrow IPC stream.
package output
