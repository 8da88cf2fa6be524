// Package server hosts the Fiber HTTP application shared by every route:
// request IDs, access logging, bearer token resolution and the fallback
// error handler. Business routes live in server/routes and read the resolved
// permission through Permission and IsAdmin, so handlers never parse the
// Authorization header themselves.
package server
