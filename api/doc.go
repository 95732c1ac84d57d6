// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

// Package api defines the HTTP request/response shapes of the IntelFlow API.
//
// # API Overview
//
// IntelFlow exposes a small question-driven surface:
//   - POST /api/v1/questions submits a business question and returns 202
//     with a run id; execution continues in the background.
//   - GET /api/v1/runs/{id} returns focus states while the run is in
//     progress and the full response contract once it is terminal.
//   - GET /api/v1/runs lists recent runs, served from the archive when one
//     is configured and from the in-memory registry otherwise.
//   - GET /api/v1/runs/{id}/events upgrades to a WebSocket and streams run
//     lifecycle events.
//   - /health, /healthz, /ready, /readyz, /version for operations;
//     /metrics lives on the separate metrics listener.
//
// # Authentication
//
// When API keys are configured, protected endpoints require the X-API-Key
// header:
//
//	X-API-Key: your-api-key
//
// Health, readiness, version, and metrics endpoints are always exempt.
//
// # Result shape
//
// Terminal runs embed the response contract under "result". Its field names
// (organization, focus_areas, decision_makers, investments, gaps, sources,
// synthesis, status, meeting_readiness) are stable; downstream CRM and
// report consumers key on them.
package api
