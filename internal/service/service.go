// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces ownership, orchestrates
//	Repository (Data layer)  → reads/writes the store
//
// Services take repository interfaces, not concrete stores. The same
// CategoryService and EventService run on the server over the memory or
// SQLite store and in the CLI over the local cache file.
//
// Every category and event method takes the caller's user ID as an explicit
// argument. Services never look at HTTP sessions; the handler resolves the
// session and passes the ID down.
//
// ERRORS:
// Services return apperror values (ValidationFailed, NotFound, Unauthorized).
// Handlers translate them into status codes. Anything else is an internal
// error and becomes a 500.
package service

// Validation limits.
const (
	MaxCategoryNameLength = 50
	MaxTitleLength        = 200
	MaxDescriptionLength  = 2000
	MinUsernameLength     = 3
	MaxUsernameLength     = 32
)
