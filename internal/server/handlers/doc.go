// Package handlers provides the claim service HTTP handlers:
// the claim submission endpoint and general infrastructure handlers (health, version, jwks).
package handlers
