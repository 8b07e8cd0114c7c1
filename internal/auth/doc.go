// Package auth provides optional bearer-token authentication for the MCP endpoints.
//
// # JWT Tokens
//
// When auth.jwt_secret is configured, every request to /mcp and /sse must carry
//
//	Authorization: Bearer <token>
//
// where the token is an HS256 JWT whose "sub" claim names the caller. Tokens are
// minted with JWTVerifier.Generate (the CLI exposes this as the token command).
//
// # Middleware
//
//	verifier, err := auth.NewJWTVerifier([]byte(secret))
//	handler = auth.BearerMiddleware(verifier, logger)(handler)
//
// The authenticated subject is available to handlers through SubjectFromContext.
// Health endpoints are mounted outside the middleware and stay public.
package auth
