// Package handlers implements HTTP handlers for the meli-harvester API.
// Probe endpoints are plain Echo handlers; everything under /api/v1 is a
// Huma operation so it shows up in the generated OpenAPI document.
package handlers

// StatusResponse is a generic status response body.
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}
