// Package api implements the HTTP surface of the IR sensor service.
//
// This package provides:
//   - The sensor read endpoint (default /ir, plus the legacy /ir.php alias),
//     answering any HTTP method with the probe's JSON object or
//     {"detected": false, "error": "..."} and status 500
//   - GET /api/v1/health with version and collaborator status
//   - GET /api/v1/audit listing recorded probe executions
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// Every read endpoint call runs the probe exactly once. Nothing is cached.
package api
