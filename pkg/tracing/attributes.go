package tracing

// Attribute keys for calculator operations
const (
	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	// Derivation attributes
	AttrTrackName   = "track.name"
	AttrTrackPoints = "track.points"
	AttrTrackCount  = "commute.tracks"

	// Cache attributes
	AttrCacheType = "cache.type"
	AttrCacheHit  = "cache.hit"
	AttrCacheKey  = "cache.key"

	// HTTP attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPPath       = "http.path"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPSessionID  = "http.session_id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Cache types
const (
	CacheTypeStats = "track_stats"
)
