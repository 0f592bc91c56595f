// Package httpapi exposes the auth engine over HTTP. It owns transport
// concerns only: JSON request shapes, CORS, client-IP extraction behind
// trusted proxies, and mapping the engine's error taxonomy onto status
// codes. All policy lives in the engine.
package httpapi
