// Package domain holds the error taxonomy and the flow-state model shared by
// every layer of the persistence core. It has no dependencies on adapters or
// on the manager, so any package may import it without cycles.
package domain
