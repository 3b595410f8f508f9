package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeGitHub serves the token endpoint and the two API calls Exchange makes.
func fakeGitHub(t *testing.T, publicEmail string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "gho_test", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(GitHubUser{ID: 99, Login: "octo", Email: publicEmail})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"email":"old@example.com","primary":false,"verified":true},
			{"email":"octo@example.com","primary":true,"verified":true}
		]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server) *GitHubProvider {
	p := NewGitHubProvider("id", "secret", "http://localhost/auth/github/callback")
	p.config.Endpoint.AuthURL = srv.URL + "/login/oauth/authorize"
	p.config.Endpoint.TokenURL = srv.URL + "/login/oauth/access_token"
	p.apiBase = srv.URL
	return p
}

func TestAuthURL_CarriesState(t *testing.T) {
	p := NewGitHubProvider("client-123", "secret", "http://localhost/cb")
	u := p.AuthURL("state-xyz")

	for _, want := range []string{"client_id=client-123", "state=state-xyz", "github.com"} {
		if !strings.Contains(u, want) {
			t.Errorf("AuthURL() = %q, missing %q", u, want)
		}
	}
}

func TestExchange_PublicEmail(t *testing.T) {
	p := newTestProvider(fakeGitHub(t, "public@example.com"))

	u, err := p.Exchange(context.Background(), "code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if u.ID != 99 || u.Login != "octo" || u.Email != "public@example.com" {
		t.Errorf("Exchange() = %+v", u)
	}
}

func TestExchange_FallsBackToPrimaryEmail(t *testing.T) {
	p := newTestProvider(fakeGitHub(t, ""))

	u, err := p.Exchange(context.Background(), "code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if u.Email != "octo@example.com" {
		t.Errorf("Email = %q, want octo@example.com", u.Email)
	}
}
