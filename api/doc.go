// Package api provides the request and response types for the CureSwarm API.
//
// This package contains the wire-level DTOs and view converters
// for the CureSwarm HTTP API.
//
// # API Overview
//
// CureSwarm provides a RESTful API for:
//   - Agent registration with immediate first-task handoff
//   - Task assignment, claiming, and submission (findings, reviews, hypotheses)
//   - Consensus-driven quality control of research findings
//   - DOI verification against the CrossRef registry
//   - Division reports, swarm statistics, and synthesis opportunities
//
// # Authentication
//
// When an API key is configured, endpoints under /api/ require the
// X-API-Key header:
//
//	X-API-Key: your-api-key
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Generating Documentation
//
// To regenerate Swagger documentation using swag:
//
//	swag init -g cmd/cureswarm/main.go -o api --parseDependency --parseInternal
package api
