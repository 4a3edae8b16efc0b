package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHealth = "/healthz"

	// Class session routes; {id} is the class id
	RouteClass           = "/api/classes/{id}"
	RouteClassCode       = "/api/classes/{id}/code"
	RouteClassCodeVerify = "/api/classes/{id}/code/verify"
	RouteClassToken      = "/api/classes/{id}/token"
	RouteClassStart      = "/api/classes/{id}/start"
	RouteClassEnd        = "/api/classes/{id}/end"
)
