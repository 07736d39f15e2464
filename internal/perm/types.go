package perm

// Scope is the authorization boundary a permission is evaluated against:
// the whole installation (global) or a single project. A zero Scope means
// global. Scopes are resolved once per request and never mutated.
type Scope struct {
	ProjectID  string
	ProjectKey string
}

// GlobalScope returns the installation-wide scope.
func GlobalScope() Scope { return Scope{} }

// ProjectScope returns the scope of a single resolved project.
func ProjectScope(id, key string) Scope {
	return Scope{ProjectID: id, ProjectKey: key}
}

// IsGlobal reports whether the scope covers the whole installation.
func (s Scope) IsGlobal() bool { return s.ProjectID == "" }

// Project is a resolved project reference.
type Project struct {
	ID   string
	Key  string
	Name string
}

// User is a stored user record. The identity key is ID; Name and Email
// may be empty.
type User struct {
	ID    string
	Login string
	Name  string
	Email string
}

// Grant states that a user holds one permission kind within one scope.
// An empty ProjectID denotes a global grant.
type Grant struct {
	UserID     string
	Permission string
	ProjectID  string
}

// Paging describes one slice of a larger ordered result set. Total is
// computed by a query separate from the page fetch and may lag behind
// concurrent writes by a small amount.
type Paging struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Total     int `json:"total"`
}

// ResponseUser is the outbound projection of one user plus the ordered,
// duplicate-free set of permission kinds held in the requested scope.
type ResponseUser struct {
	Login       string   `json:"login"`
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Avatar      string   `json:"avatar,omitempty"`
	Permissions []string `json:"permissions"`
}

// Page is one assembled listing response.
type Page struct {
	Users  []ResponseUser `json:"users"`
	Paging Paging         `json:"paging"`
}
