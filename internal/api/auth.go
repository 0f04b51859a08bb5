package api

import (
    "net/http"
    "strings"
)

const (
    RoleAdmin   = "admin"
    RolePlanner = "planner"
    RoleViewer  = "viewer"
)

type Principal struct {
    Tenant  string
    Role    string
    Subject string
}

// getPrincipal resolves the caller. A bearer token goes through the configured
// verifier; without one, dev mode trusts X-Tenant-Id and X-Role. ok is false
// when a token is present but invalid, or when no identity is available outside dev.
func (s *Server) getPrincipal(r *http.Request) (Principal, bool) {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        pr, err := s.Auth.Verify(r.Context(), tok)
        if err != nil { return Principal{}, false }
        return Principal{Tenant: normalizeTenantID(pr.Tenant), Role: pr.Role, Subject: pr.Subject}, true
    }
    if s.Auth != nil && s.Auth.Mode() != "dev" { return Principal{}, false }
    tenant := r.Header.Get("X-Tenant-Id")
    role := strings.ToLower(r.Header.Get("X-Role"))
    if tenant == "" { tenant = "t_demo" }
    if role == "" { role = RoleAdmin }
    return Principal{Tenant: normalizeTenantID(tenant), Role: role}, true
}

func normalizeTenantID(t string) string { return strings.ToLower(strings.TrimSpace(t)) }

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

func (p Principal) CanPlan() bool { return p.Role == RoleAdmin || p.Role == RolePlanner }

// authorize writes 401/403 and returns false when the caller may not proceed.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, allowed func(Principal) bool, need string) (Principal, bool) {
    p, ok := s.getPrincipal(r)
    if !ok { writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid bearer token", r.URL.Path); return p, false }
    if allowed != nil && !allowed(p) { writeProblem(w, http.StatusForbidden, "Forbidden", need+" required", r.URL.Path); return p, false }
    return p, true
}
