// Package middleware adapts [pmscanauth.Engine.Authenticate] to net/http.
//
// [Guard] reads the Authorization bearer token, verifies it statelessly and
// injects the subject id into the request context. It makes no Redis call
// and no authorization decision beyond pass or reject.
package middleware
