// Package session manages client sessions keyed by id.
//
// A client posts an offer, optionally naming a session id it was given
// earlier. If that session is still live the offer renegotiates its existing
// connection and no new runtime starts. Otherwise the manager mints a new id,
// initializes a fresh connection, and starts exactly one runtime for it.
//
// A session closes when its transport closes, when its runtime exits, when it
// is removed explicitly, or when the manager shuts down. Close is idempotent
// from every direction.
package session
