// Package middleware provides HTTP middleware for the photo archive:
// request logging in W3C Extended Log Format, gzip compression for JSON
// responses, and Prometheus request metrics with bounded path cardinality.
package middleware
