package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing

    "github.com/iliyamo/device-fleet/internal/handler"    // import the handlers that implement business logic
    "github.com/iliyamo/device-fleet/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// API bundles the handlers for the protected part of the surface so
// registration stays a single call from main.
type API struct {
    Tenants *handler.TenantHandler
    Folders *handler.FolderHandler
    Devices *handler.DeviceHandler
    Users   *handler.UserHandler
    Tags    *handler.TagHandler
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Load balancers and monitoring probe this endpoint to verify the
    // service is up.
    e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes and their middleware.
// Unauthenticated operations live under /v1/auth and carry the rate
// limiter; the session endpoint /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
    // Operations that do not require an existing session: register,
    // login, refresh, logout.  The limiter throttles credential
    // guessing; it is a pass-through when rate limiting is disabled.
    g := e.Group("/v1/auth", limiter)
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    // Refresh rotates the refresh token: the presented token is
    // superseded and a new pair is issued.
    g.POST("/refresh", a.Refresh)
    // Logout accepts the refresh token from the cookie or the body and
    // revokes its whole chain.  No JWT is required so an expired
    // session can still be terminated.
    g.POST("/logout", a.Logout)

    // Routes below require a valid access token.
    auth := e.Group("/v1")
    auth.Use(middleware.JWTAuth(jwtSecret))
    auth.GET("/me", a.Me)
}

// RegisterAPI registers the protected resource routes.  Every route in
// this group runs the JWTAuth middleware; per-endpoint authorization
// (role tiers and tenant membership) happens inside the handlers via
// the access evaluator.  The cache middleware is applied to the heavy
// list endpoints only and is a pass-through when Redis is absent.
func RegisterAPI(e *echo.Echo, api API, jwtSecret string, cache echo.MiddlewareFunc) {
    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))

    // Tenants.  Creation, rename, deletion and membership management
    // are admin-only; reads are membership scoped.
    g.POST("/tenants", api.Tenants.Create)
    g.GET("/tenants", api.Tenants.List, cache)
    g.GET("/tenants/:id", api.Tenants.Get)
    g.PATCH("/tenants/:id", api.Tenants.Update)
    g.DELETE("/tenants/:id", api.Tenants.Delete)
    g.POST("/tenants/:id/users/:uid", api.Tenants.AddUser)
    g.DELETE("/tenants/:id/users/:uid", api.Tenants.RemoveUser)
    g.GET("/tenants/:id/tags", api.Tenants.ListTags)
    g.GET("/tenants/:id/devices", api.Tenants.ListDevices, cache)
    g.GET("/tenants/:id/folders", api.Tenants.ListFolders)

    // Folders.  The roots listing returns one root per accessible
    // tenant; subtree reads are membership scoped.
    g.POST("/folders", api.Folders.Create)
    g.GET("/folders/roots", api.Folders.Roots)
    g.GET("/folders/:id", api.Folders.Get)
    g.GET("/folders/:id/children", api.Folders.Children)
    g.GET("/folders/:id/descendants", api.Folders.Descendants)
    g.GET("/folders/:id/devices", api.Folders.ListDevices)
    g.PATCH("/folders/:id", api.Folders.Rename)
    g.DELETE("/folders/:id", api.Folders.Delete)

    // Devices.  Registration and edits require owner or admin rank;
    // the heartbeat endpoint is open to any member of the device's
    // tenant so agents can report with a plain user account.
    g.POST("/devices", api.Devices.Register)
    g.GET("/devices", api.Devices.List, cache)
    g.GET("/devices/:id", api.Devices.Get)
    g.PATCH("/devices/:id", api.Devices.Update)
    g.DELETE("/devices/:id", api.Devices.Delete)
    g.POST("/devices/:id/heartbeat", api.Devices.Heartbeat)
    g.GET("/devices/:id/tags", api.Devices.ListTags)

    // Users.  Administration endpoints; a user can always read and
    // patch their own account.
    g.POST("/users", api.Users.Create)
    g.GET("/users", api.Users.List)
    g.GET("/users/:id", api.Users.Get)
    g.PATCH("/users/:id", api.Users.Update)
    g.DELETE("/users/:id", api.Users.Delete)
    g.POST("/users/:id/role", api.Users.AssignRole)
    g.GET("/users/:id/tenants", api.Users.ListTenants)
    g.GET("/users/:id/folders", api.Users.ListFolders)
    g.GET("/users/:id/devices", api.Users.ListDevices)

    // Tags and attachments.  Attach/detach/replace address the entity
    // directly so any taggable object (tenant, user, folder, device)
    // is served by the same routes.
    g.POST("/tags", api.Tags.Create)
    g.GET("/tags", api.Tags.List, cache)
    g.GET("/tags/:id", api.Tags.Get)
    g.PATCH("/tags/:id", api.Tags.Rename)
    g.DELETE("/tags/:id", api.Tags.Delete)
    g.GET("/entities/:eid/tags", api.Tags.ListForEntity)
    g.PUT("/entities/:eid/tags", api.Tags.Replace)
    g.POST("/entities/:eid/tags/:tid", api.Tags.Attach)
    g.DELETE("/entities/:eid/tags/:tid", api.Tags.Detach)
}
