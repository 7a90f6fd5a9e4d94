// Package server provides the HTTP server for the claim handling service.
//
// the server is configured through environment variables
// (see app/internal/config/config.go for details)
//
// Routes:
//   - POST /submit                  claim submission (see handlers.HandleSubmit)
//   - GET  /health                  liveness
//   - GET  /version                 build information
//   - GET  /.well-known/jwks.json   the response signing key
//
// middleware is in app/internal/server/middleware
package server
