package middleware

import "github.com/quailbot/quail/pkg/ports"

// Middleware allows wrapping a LightStore to add behavior.
type Middleware func(ports.LightStore) ports.LightStore

// Chain applies middlewares so the first listed is the outermost.
func Chain(store ports.LightStore, mws ...Middleware) ports.LightStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
