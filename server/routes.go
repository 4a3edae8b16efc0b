package server

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))

	// Read
	s.RegisterRouteHandler("GET "+RouteClass, ChainMiddleware(s.GetClassHandler(), s.APIMiddleware(s.RequireAuth())...))

	// Student side: obtain a proof
	s.RegisterRouteHandler("GET "+RouteClassCode, ChainMiddleware(s.ClassCodeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteClassToken, ChainMiddleware(s.IssueTokenHandler(), s.APIMiddleware(s.RequireAuth())...))

	// Tutor side: check a proof, move the lifecycle
	s.RegisterRouteHandler("POST "+RouteClassCodeVerify, ChainMiddleware(s.VerifyCodeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteClassStart, ChainMiddleware(s.StartClassHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteClassEnd, ChainMiddleware(s.EndClassHandler(), s.APIMiddleware(s.RequireAuth())...))

	// CORS preflight for every API route
	s.RegisterRouteFunc("OPTIONS /api/", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))
}
