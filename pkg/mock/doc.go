// Package mock resolves intercepted browser requests against registered mock
// responses.
//
// An Interceptor owns an ordered Registry of entries. Every request delivered
// by a Transport is handled in one pass:
//
//   - OPTIONS requests are answered with 204 and CORS headers, without
//     consulting the registry.
//   - Otherwise the first matching entry (highest priority first, most
//     recently added first among equal priorities) is claimed, its response
//     template is synthesized and sent back through the transport.
//   - Unmatched fetch/XHR requests receive a 404 with a fixed body; any other
//     unmatched request is released to the network.
//
// Reply failures are returned to the caller. Pass-through failures are only
// logged.
package mock
