// Package auth provides authentication for the gateway's HTTP surface.
//
// # Accounts
//
// The gateway has a single admin account configured by username and bcrypt
// password hash (auth.admin_username, auth.admin_password_hash). Use
// "lisa-gateway hash-password" to produce the hash.
//
// # Tokens
//
// A successful login returns an HS256 JWT whose "sub" claim is the admin
// username. Tokens expire after auth.token_ttl (24h by default):
//
//	verifier, err := auth.NewJWTVerifier(secret)
//	authn, err := auth.NewAuthenticator(user, hash, verifier, ttl)
//	token, err := authn.Login(user, password)
//
// The secret must be at least MinSecretLength bytes.
//
// # HTTP Middleware
//
// HTTPAuthMiddleware guards API routes. It reads "Authorization: Bearer
// <token>", or the "token" query parameter on WebSocket upgrades, and places
// an AuthContext in the request context. Failures are 401 responses with a
// JSON body and a WWW-Authenticate header.
package auth
