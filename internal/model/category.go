package model

// Category is a user-defined colored label events can be tagged with.
// Deleting a category never touches events that reference it.
type Category struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"-"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

// CategoryInput is the body of POST /api/categories and PUT /api/categories/{id}.
// An empty Color asks the server to pick the next unused palette color.
type CategoryInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}
