package model

// DateLayout is the wire and storage format of Event.Date.
const DateLayout = "2006-01-02"

// Event is a dated life event with a 0-100 score.
//
// CategoryID is a weak reference: it may point at a category that has since
// been deleted. Order is assigned by the client and drives the default sort.
type Event struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"-"`
	CategoryID  *int64  `json:"categoryId"`
	Date        string  `json:"date"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Score       int     `json:"score"`
	Order       int     `json:"order"`
}

// EventInput is the body of POST /api/events. Score and Order are pointers so
// that a missing value is a validation error instead of a silent zero.
type EventInput struct {
	CategoryID  *int64  `json:"categoryId"`
	Date        string  `json:"date"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Score       *int    `json:"score"`
	Order       *int    `json:"order"`
}

// EventPatch is the body of PATCH /api/events/{id}. Absent fields are left
// untouched; CategoryID and Description can also be cleared with null.
type EventPatch struct {
	CategoryID  Optional[int64]  `json:"categoryId,omitzero"`
	Date        *string          `json:"date,omitempty"`
	Title       *string          `json:"title,omitempty"`
	Description Optional[string] `json:"description,omitzero"`
	Score       *int             `json:"score,omitempty"`
	Order       *int             `json:"order,omitempty"`
}

// Empty reports whether the patch carries no field at all.
func (p EventPatch) Empty() bool {
	return !p.CategoryID.Set && p.Date == nil && p.Title == nil &&
		!p.Description.Set && p.Score == nil && p.Order == nil
}

// Apply copies every present field of p onto e.
func (p EventPatch) Apply(e *Event) {
	if p.CategoryID.Set {
		e.CategoryID = p.CategoryID.Ptr()
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description.Set {
		e.Description = p.Description.Ptr()
	}
	if p.Score != nil {
		e.Score = *p.Score
	}
	if p.Order != nil {
		e.Order = *p.Order
	}
}

// Int returns a pointer to v. Handy when building inputs in code.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
