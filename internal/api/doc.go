// Package api implements the HTTP API and live WebSocket channel for the
// student registry.
//
// This package provides:
//   - REST endpoints for student CRUD and bulk .xlsx import
//   - The legacy routes (/add-student, /student/{id}) used by existing clients
//   - A WebSocket endpoint that joins each connection to the observer hub
//   - Middleware stack (request ID, logging, metrics, recovery, CORS, body limits)
//   - Health, JSON system metrics and Prometheus scrape endpoints
//
// # Architecture
//
// Handlers call the registry service, which validates, writes to the record
// store and then broadcasts a change event through the hub. Each WebSocket
// connection is one hub observer; its write pump drains the observer queue
// and its read pump only keeps the connection alive. A connection whose
// queue fills is dropped by the hub and closed here.
//
// # Security
//
// There is no authentication. CORS allows every origin unless
// api.cors.allowed_origins says otherwise.
package api
