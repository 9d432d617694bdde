package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteAuthUpdatePassword, ChainMiddleware(s.UpdatePasswordHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.RequireAuth())...))

	// USERS
	s.RegisterRouteHandler("GET "+RouteUserProfile, ChainMiddleware(s.GetProfileHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("PUT "+RouteUserProfile, ChainMiddleware(s.UpdateProfileHandler(), s.APIMiddleware(s.RequireAuth())...))

	// KEYS (only when tokens are signed with a published key)
	if _, ok := s.issuer.JWKS(); ok {
		s.RegisterRouteHandler("GET "+RouteJWKS, ChainMiddleware(s.JWKSHandler(), s.APIMiddleware()...))
	}

	// CORS preflight for the versioned API
	s.RegisterRouteHandler("OPTIONS "+APIVersionPrefix+"/", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))

	// OPERATIONS
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
}
