package compose

import "github.com/gin-gonic/gin"

// scopeContextKey is the gin.Context key a request's Scope is stored
// under, generalizing the teacher's app.go middleware that stashes the
// DI container on the context via c.Set("container", ...).
const scopeContextKey = "compose.scope"

// ScopeMiddleware opens a Scope at the start of every request and closes
// it once the handler chain returns, so Scoped services live exactly as
// long as the request they were resolved for (spec §4.10).
func ScopeMiddleware(c *Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		scope := c.CreateScope()
		defer scope.Close()

		ctx.Set(scopeContextKey, scope)
		ctx.Next()
	}
}

// ScopeFromContext retrieves the request's Scope, if ScopeMiddleware ran.
func ScopeFromContext(ctx *gin.Context) (*Scope, bool) {
	v, ok := ctx.Get(scopeContextKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Scope)
	return s, ok
}

// MustScopeFromContext panics if ScopeMiddleware did not run for this
// request; handlers that always sit behind the middleware can use this
// instead of repeating the ok-check.
func MustScopeFromContext(ctx *gin.Context) *Scope {
	s, ok := ScopeFromContext(ctx)
	if !ok {
		panic("compose: no scope on context, is ScopeMiddleware registered?")
	}
	return s
}

// ResolveRequest is ResolveScoped against the Scope on a gin.Context, the
// common case of pulling a service out of a handler.
func ResolveRequest[T any](ctx *gin.Context) (T, error) {
	return ResolveScoped[T](MustScopeFromContext(ctx))
}
