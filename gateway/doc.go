// Package gateway implements the Square Connect HTTP client behind the
// core token exchange, order, payment, and location contracts.
package gateway
