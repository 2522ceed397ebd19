// Package chaos implements a fault-injection gate for HTTP request pipelines.
//
// A Gate delays every request by a fixed latency and then, with a configured
// probability, answers it with a synthetic 500 instead of passing it on. The
// configuration is resolved once from explicit overrides and an injected
// environment lookup, and malformed values degrade to "no chaos" rather than
// failing.
//
// The gate plugs into net/http and chi through Middleware, into any
// continuation-style pipeline through Handle, and into gin through the
// ginchaos package.
package chaos
