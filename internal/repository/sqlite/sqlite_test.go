package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/model"
)

// newTestDB opens a fresh in-memory database. t.Helper() makes failures
// point at the caller's line.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestEvent(t *testing.T, db *DB, userID int64, title string, order int) *model.Event {
	t.Helper()
	e := &model.Event{UserID: userID, Date: "2024-05-01", Title: title, Score: 60, Order: order}
	if err := db.CreateEvent(context.Background(), e); err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
	return e
}

// =========================================================================
// MIGRATION TESTS
// =========================================================================

func TestNew_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lifeline.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	u := createTestUser(t, db, "persisted")
	db.Close()

	// migrations must be idempotent
	db, err = New(path)
	if err != nil {
		t.Fatalf("New() (reopen) error = %v", err)
	}
	defer db.Close()

	got, err := db.GetUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUserByID() after reopen error = %v", err)
	}
	if got.Username != "persisted" {
		t.Errorf("Username = %q, want persisted", got.Username)
	}
}

// =========================================================================
// USER TESTS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	token := "0123abcd"
	user := &model.User{
		Username:          "alice",
		Email:             "alice@example.com",
		PasswordHash:      "hash",
		VerificationToken: &token,
	}
	if err := db.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.ID != 1 {
		t.Errorf("ID = %d, want 1", user.ID)
	}

	found, err := db.GetUserByVerificationToken(ctx, token)
	if err != nil {
		t.Fatalf("GetUserByVerificationToken() error = %v", err)
	}
	if found.ID != user.ID || found.EmailVerified {
		t.Errorf("found = %+v", found)
	}
	if found.GitHubID != nil {
		t.Errorf("GitHubID = %v, want nil", *found.GitHubID)
	}
}

func TestCreateUser_Duplicates(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	tests := []struct {
		name      string
		user      model.User
		wantField string
	}{
		{name: "email", user: model.User{Username: "other", Email: "alice@example.com"}, wantField: "email"},
		{name: "username", user: model.User{Username: "alice", Email: "fresh@example.com"}, wantField: "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.user
			err := db.CreateUser(context.Background(), &u)
			if !errors.Is(err, apperror.ErrConflict) {
				t.Fatalf("CreateUser() error = %v, want ErrConflict", err)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
		})
	}
}

func TestUpdateUser_VerifyAndLinkGitHub(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	token := "t"
	u := &model.User{Username: "bob", Email: "bob@example.com", VerificationToken: &token}
	if err := db.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	gh := int64(4242)
	u.EmailVerified = true
	u.VerificationToken = nil
	u.GitHubID = &gh
	if err := db.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	got, err := db.GetUserByGitHubID(ctx, 4242)
	if err != nil {
		t.Fatalf("GetUserByGitHubID() error = %v", err)
	}
	if !got.EmailVerified || got.VerificationToken != nil {
		t.Errorf("got = %+v, want verified with no token", got)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.GetUserByID(ctx, 404); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetUserByUsername(ctx, "ghost"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByUsername() error = %v, want ErrNotFound", err)
	}
	if err := db.UpdateUser(ctx, &model.User{ID: 404, Username: "x", Email: "x"}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUser() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// CATEGORY TESTS
// =========================================================================

func TestCategories_CRUDAndOwnership(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	c := &model.Category{UserID: alice.ID, Name: "Work", Color: "#2563eb"}
	if err := db.CreateCategory(ctx, c); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	if list, _ := db.ListCategories(ctx, bob.ID); len(list) != 0 {
		t.Errorf("bob sees %d categories, want 0", len(list))
	}

	// bob can neither rename nor delete alice's row
	err := db.UpdateCategory(ctx, &model.Category{ID: c.ID, UserID: bob.ID, Name: "Hacked", Color: "#000000"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateCategory(foreign) error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteCategory(ctx, c.ID, bob.ID); err != nil {
		t.Errorf("DeleteCategory(foreign) error = %v", err)
	}

	c.Name = "Career"
	if err := db.UpdateCategory(ctx, c); err != nil {
		t.Fatalf("UpdateCategory() error = %v", err)
	}
	list, _ := db.ListCategories(ctx, alice.ID)
	if len(list) != 1 || list[0].Name != "Career" {
		t.Fatalf("ListCategories() = %+v", list)
	}

	if err := db.DeleteCategory(ctx, c.ID, alice.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if list, _ := db.ListCategories(ctx, alice.ID); len(list) != 0 {
		t.Errorf("category still listed after delete")
	}
}

func TestDeleteCategory_KeepsEventReference(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice")

	c := &model.Category{UserID: u.ID, Name: "Travel", Color: "#0891b2"}
	_ = db.CreateCategory(ctx, c)
	e := &model.Event{UserID: u.ID, CategoryID: &c.ID, Date: "2024-02-02", Title: "Trip", Score: 95}
	if err := db.CreateEvent(ctx, e); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteCategory(ctx, c.ID, u.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}

	got, err := db.GetEvent(ctx, e.ID, u.ID)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if got.CategoryID == nil || *got.CategoryID != c.ID {
		t.Errorf("CategoryID = %v, want %d", got.CategoryID, c.ID)
	}
}

// =========================================================================
// EVENT TESTS
// =========================================================================

func TestEvents_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice")

	in := &model.Event{
		UserID:      u.ID,
		CategoryID:  model.Int64(7), // dangling reference is allowed
		Date:        "2023-12-31",
		Title:       "New Year's Eve",
		Description: model.String("fireworks"),
		Score:       88,
		Order:       4,
	}
	if err := db.CreateEvent(ctx, in); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	list, err := db.ListEvents(ctx, u.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListEvents() = %v, %v", list, err)
	}
	got := list[0]
	if got.ID != in.ID || *got.CategoryID != 7 || got.Date != in.Date || got.Title != in.Title ||
		*got.Description != "fireworks" || got.Score != 88 || got.Order != 4 {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestListEvents_OrderedByOrder(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "alice")
	createTestEvent(t, db, u.ID, "c", 2)
	createTestEvent(t, db, u.ID, "a", 0)
	createTestEvent(t, db, u.ID, "b", 1)

	list, err := db.ListEvents(context.Background(), u.ID)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if list[i].Title != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Title, want)
		}
	}
}

func TestEvents_Ownership(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	e := createTestEvent(t, db, alice.ID, "secret", 0)

	if _, err := db.GetEvent(ctx, e.ID, bob.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetEvent(foreign) error = %v", err)
	}

	stolen := *e
	stolen.UserID = bob.ID
	if err := db.UpdateEvent(ctx, &stolen); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateEvent(foreign) error = %v", err)
	}
	if err := db.DeleteEvent(ctx, e.ID, bob.ID); err != nil {
		t.Errorf("DeleteEvent(foreign) error = %v", err)
	}
	if _, err := db.GetEvent(ctx, e.ID, alice.ID); err != nil {
		t.Errorf("event gone after foreign delete: %v", err)
	}

	e.Description = nil
	e.Score = 0
	if err := db.UpdateEvent(ctx, e); err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	if err := db.DeleteEvent(ctx, e.ID, alice.ID); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}
	if _, err := db.GetEvent(ctx, e.ID, alice.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetEvent after delete error = %v", err)
	}
}

// =========================================================================
// SESSION + VISITOR TESTS
// =========================================================================

func TestSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice")

	live := &model.Session{ID: "live", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}
	dead := &model.Session{ID: "dead", UserID: u.ID, ExpiresAt: time.Now().Add(-time.Hour)}
	for _, s := range []*model.Session{live, dead} {
		if err := db.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession(%s) error = %v", s.ID, err)
		}
	}

	got, err := db.GetSession(ctx, "live")
	if err != nil || got.UserID != u.ID {
		t.Fatalf("GetSession(live) = %+v, %v", got, err)
	}
	if _, err := db.GetSession(ctx, "dead"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSession(dead) error = %v, want ErrNotFound", err)
	}

	n, err := db.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Errorf("PurgeExpired() = %d, %v; want 1", n, err)
	}

	if err := db.DeleteSession(ctx, "live"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetSession(ctx, "live"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSession after delete error = %v", err)
	}
}

func TestVisitors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for want := int64(1); want <= 2; want++ {
		got, err := db.Increment(ctx)
		if err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
		if got != want {
			t.Errorf("Increment() = %d, want %d", got, want)
		}
	}
	if c, _ := db.Count(ctx); c != 2 {
		t.Errorf("Count() = %d, want 2", c)
	}
}

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"constraint failed: UNIQUE constraint failed: users.email (2067)", "email"},
		{"UNIQUE constraint failed: users.username", "username"},
		{"no such table: users", ""},
	}
	for _, tt := range tests {
		if got := uniqueViolation(errors.New(tt.msg), "users"); got != tt.want {
			t.Errorf("uniqueViolation(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}
