package utils

import "time"

type contextKey string

// Request-scoped context keys set by the HTTP handlers
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Request handling constants
const (
	// RequestTimeout bounds every engine call made from an HTTP handler
	RequestTimeout = 30 * time.Second
)

// Vehicle categories with a default multiplier
const (
	VehicleSedan  = "sedan"
	VehicleSUV    = "suv"
	VehicleTruck  = "truck"
	VehicleVan    = "van"
	VehicleLuxury = "luxury"
)
