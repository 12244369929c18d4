//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/service"
)

// Do sends a JSON request with an optional bearer token.
func (env *TestEnv) Do(method, path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodGet, path, nil, "")
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodPost, path, body, token)
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodGet, path, nil, token)
}

// AuthPUT performs an authenticated PUT request.
func (env *TestEnv) AuthPUT(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodPut, path, body, token)
}

// AuthDELETE performs an authenticated DELETE request.
func (env *TestEnv) AuthDELETE(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodDelete, path, body, token)
}

// EnterTeam exchanges a typed team name for a session.
func (env *TestEnv) EnterTeam(name string) service.Session {
	env.t.Helper()
	resp := env.POST("/v1/auth/team", map[string]string{"name": name}, "")
	AssertStatus(env.t, resp, http.StatusOK)
	var s service.Session
	DecodeJSON(env.t, resp, &s)
	return s
}

// CreateTeam registers a team through the admin realm and returns its team token.
func (env *TestEnv) CreateTeam(name string) (domain.Team, string) {
	env.t.Helper()
	admin := env.EnterTeam(TestSuperCode)

	resp := env.POST("/v1/admin/teams", map[string]string{"name": name}, admin.Token)
	AssertStatus(env.t, resp, http.StatusCreated)
	var team domain.Team
	DecodeJSON(env.t, resp, &team)

	return team, env.EnterTeam(name).Token
}

// AddPlayer saves a player with a PIN directly through the roster service.
func (env *TestEnv) AddPlayer(teamID, name string, role domain.Role, pin string) domain.Player {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := env.Services.Roster.Save(ctx, teamID, domain.Player{Name: name, Role: role})
	if err != nil {
		env.t.Fatalf("AddPlayer: %v", err)
	}
	if pin != "" {
		if err := env.Services.Roster.SetPIN(ctx, teamID, p.ID, pin); err != nil {
			env.t.Fatalf("AddPlayer: set pin: %v", err)
		}
	}
	return p
}

// Login signs a player in with their PIN and returns the player token.
func (env *TestEnv) Login(teamToken string, playerID int64, pin string) string {
	env.t.Helper()
	resp := env.POST("/v1/auth/login", service.LoginInput{PlayerID: playerID, PIN: pin}, teamToken)
	AssertStatus(env.t, resp, http.StatusOK)
	var s service.Session
	DecodeJSON(env.t, resp, &s)
	return s.Token
}
