// Package core contains the Square integration domain contracts, entities,
// and orchestration logic. Lower-level adapters must depend on this package;
// core must not depend on transport or storage adapters.
package core
