// Package testutil provides deterministic clocks and id generators for tests.
package testutil
