// Package httpserver exposes the rotation service over HTTP.
//
// # Routes
//
// Rotation API under /api/v1/regions/{region}/keys: rotate (POST .../rotate),
// ring summary (GET with ?key_id=), and fleet push (POST .../push). Wire
// bodies never carry raw key material; see package api.
//
// # Status codes
//
// The error taxonomy maps onto statuses: 400 invalid argument or key
// format, 404 unknown key id, 409 version conflict, 422 corrupt ring or
// cache document, 503 cache unavailable. A rotation refused by the
// cooldown is not an error: it is a 200 with status "too_soon".
//
// # Diagnostics
//
// /livez, /readyz, /drain and /undrain manage load-balancer visibility;
// Prometheus metrics are served on a separate listener and pprof can be
// mounted under /debug.
package httpserver
