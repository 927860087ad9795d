// Package clients provides HTTP clients for the rotation server API,
// plus in-package mocks for consumers' tests.
package clients
