package route

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	Home      = "home"
	Login     = "login"
	Register  = "register"
	Dashboard = "dashboard"
	Browse    = "browse"
	Cart      = "cart"
	Saved     = "saved"
	Checkout  = "checkout"
	Admin     = "admin"
	Forbidden = "forbidden"
	NotFound  = "not-found"
)

// Spec is a static route declaration. Specs are defined once at startup and never mutated.
type Spec struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	RequiresAuth  bool   `json:"requires_auth"`
	RequiresAdmin bool   `json:"requires_admin"`
}

// Table is an immutable set of routes indexed by name and path.
type Table struct {
	specs  []Spec
	byName map[string]Spec
	byPath map[string]Spec
}

// DefaultSpecs is the storefront route table.
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: Home, Path: "/"},
		{Name: Login, Path: "/login"},
		{Name: Register, Path: "/register"},
		{Name: Dashboard, Path: "/system/dashboard", RequiresAuth: true},
		{Name: Browse, Path: "/browse", RequiresAuth: true},
		{Name: Cart, Path: "/cart", RequiresAuth: true},
		{Name: Saved, Path: "/saved", RequiresAuth: true},
		{Name: Checkout, Path: "/checkout", RequiresAuth: true},
		{Name: Admin, Path: "/admin/cameras", RequiresAuth: true, RequiresAdmin: true},
		{Name: Forbidden, Path: "/forbidden"},
		{Name: NotFound, Path: "/not-found"},
	}
}

// NewTable validates specs and builds the lookup indexes. The guard redirects to
// home, login, register, dashboard, forbidden and not-found, so those names are required.
func NewTable(specs []Spec) (*Table, error) {
	t := &Table{
		specs:  make([]Spec, 0, len(specs)),
		byName: make(map[string]Spec, len(specs)),
		byPath: make(map[string]Spec, len(specs)),
	}
	for _, s := range specs {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return nil, fmt.Errorf("route name is required")
		}
		if !strings.HasPrefix(s.Path, "/") {
			return nil, fmt.Errorf("route %q: path must start with /", s.Name)
		}
		s.Path = cleanPath(s.Path)
		if _, dup := t.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate route name %q", s.Name)
		}
		if _, dup := t.byPath[s.Path]; dup {
			return nil, fmt.Errorf("duplicate route path %q", s.Path)
		}
		t.specs = append(t.specs, s)
		t.byName[s.Name] = s
		t.byPath[s.Path] = s
	}
	for _, name := range []string{Home, Login, Register, Dashboard, Forbidden, NotFound} {
		if _, ok := t.byName[name]; !ok {
			return nil, fmt.Errorf("route table is missing required route %q", name)
		}
	}
	return t, nil
}

// MustDefaultTable builds the table from DefaultSpecs and panics on error.
func MustDefaultTable() *Table {
	t, err := NewTable(DefaultSpecs())
	if err != nil {
		panic(err)
	}
	return t
}

// Specs returns the routes in declaration order.
func (t *Table) Specs() []Spec {
	return append([]Spec(nil), t.specs...)
}

// ByName looks up a route by its name.
func (t *Table) ByName(name string) (Spec, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Resolve maps a navigation target to a route. The target may be a route name
// ("cart") or a URL path ("/cart/", "/cart?tab=1"). Anything else, including
// protocol-relative URLs, reports false.
func (t *Table) Resolve(target string) (Spec, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Spec{}, false
	}
	if !strings.HasPrefix(target, "/") {
		s, ok := t.byName[target]
		return s, ok
	}
	u, err := url.Parse(target)
	if err != nil || u.Host != "" || u.Path == "" {
		return Spec{}, false
	}
	s, ok := t.byPath[cleanPath(u.Path)]
	return s, ok
}

func (t *Table) mustName(name string) Spec {
	s, ok := t.byName[name]
	if !ok {
		// NewTable guarantees every redirect target exists.
		panic("route: missing route " + name)
	}
	return s
}

func cleanPath(p string) string {
	p = path.Clean(p)
	if p == "." {
		return "/"
	}
	return p
}
