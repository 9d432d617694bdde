package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	APIVersionPrefix = "/v1"

	// Auth Routes
	RouteAuthRegister       = APIVersionPrefix + "/auth/register"
	RouteAuthLogin          = APIVersionPrefix + "/auth/login"
	RouteAuthUpdatePassword = APIVersionPrefix + "/auth/update-password"
	RouteAuthLogout         = APIVersionPrefix + "/auth/logout"

	// User Routes
	RouteUserProfile = APIVersionPrefix + "/users/profile"

	// Key Routes
	RouteJWKS = APIVersionPrefix + "/.well-known/jwks.json"

	// Operational Routes (unversioned)
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
