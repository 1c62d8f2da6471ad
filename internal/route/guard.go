package route

import (
	"context"

	"camrent/storefront/internal/oracle"
)

// Oracle answers the two questions the guard asks about the caller.
type Oracle interface {
	IsAuthenticated(ctx context.Context, token string) bool
	CurrentUserRole(ctx context.Context, token string) *oracle.UserRole
}

type Outcome string

const (
	Allow    Outcome = "allow"
	Redirect Outcome = "redirect"
	Missing  Outcome = "not-found"
)

// Decision is the guard's verdict for one navigation. Route is the requested route
// for Allow and the destination for Redirect and Missing. Rule names the rule that fired.
type Decision struct {
	Outcome Outcome `json:"decision"`
	Route   Spec    `json:"route"`
	Rule    string  `json:"rule"`
}

// navigation holds the per-evaluation state. Authentication is resolved at most
// once and only when a rule needs it.
type navigation struct {
	ctx    context.Context
	token  string
	oracle Oracle

	target Spec
	found  bool

	authResolved  bool
	authenticated bool
}

func (n *navigation) isAuthenticated() bool {
	if !n.authResolved {
		n.authResolved = true
		n.authenticated = n.oracle != nil && n.oracle.IsAuthenticated(n.ctx, n.token)
	}
	return n.authenticated
}

func (n *navigation) isAdmin() bool {
	if n.oracle == nil {
		return false
	}
	role := n.oracle.CurrentUserRole(n.ctx, n.token)
	return role != nil && role.IsAdmin
}

type rule struct {
	name  string
	apply func(t *Table, n *navigation) (Decision, bool)
}

// rules are evaluated in order and the first match wins. The auth rule must stay
// ahead of the admin rule so unauthenticated callers never trigger a role lookup.
var rules = []rule{
	{
		name: "home",
		apply: func(t *Table, n *navigation) (Decision, bool) {
			if !n.found || n.target.Name != Home {
				return Decision{}, false
			}
			if n.isAuthenticated() {
				return redirectTo(t, Dashboard), true
			}
			return redirectTo(t, Login), true
		},
	},
	{
		name: "guest-only",
		apply: func(t *Table, n *navigation) (Decision, bool) {
			if !n.found || (n.target.Name != Login && n.target.Name != Register) {
				return Decision{}, false
			}
			if !n.isAuthenticated() {
				return Decision{}, false
			}
			return redirectTo(t, Dashboard), true
		},
	},
	{
		name: "requires-auth",
		apply: func(t *Table, n *navigation) (Decision, bool) {
			if !n.found || !n.target.RequiresAuth || n.isAuthenticated() {
				return Decision{}, false
			}
			return redirectTo(t, Login), true
		},
	},
	{
		name: "requires-admin",
		apply: func(t *Table, n *navigation) (Decision, bool) {
			if !n.found || !n.target.RequiresAdmin || n.isAdmin() {
				return Decision{}, false
			}
			return redirectTo(t, Forbidden), true
		},
	},
	{
		name: "unknown-route",
		apply: func(t *Table, n *navigation) (Decision, bool) {
			if n.found {
				return Decision{}, false
			}
			return Decision{Outcome: Missing, Route: t.mustName(NotFound)}, true
		},
	},
}

func redirectTo(t *Table, name string) Decision {
	return Decision{Outcome: Redirect, Route: t.mustName(name)}
}

// Guard decides whether a navigation may proceed.
type Guard struct {
	table  *Table
	oracle Oracle
}

func NewGuard(table *Table, o Oracle) *Guard {
	if table == nil {
		table = MustDefaultTable()
	}
	return &Guard{table: table, oracle: o}
}

func (g *Guard) Table() *Table {
	return g.table
}

// RuleNames lists the guard rules in evaluation order.
func RuleNames() []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.name)
	}
	return out
}

// Evaluate runs the rule table for target on behalf of the caller holding token.
// An empty token is an anonymous caller.
func (g *Guard) Evaluate(ctx context.Context, token, target string) Decision {
	n := &navigation{ctx: ctx, token: token, oracle: g.oracle}
	n.target, n.found = g.table.Resolve(target)

	for _, r := range rules {
		if d, ok := r.apply(g.table, n); ok {
			d.Rule = r.name
			return d
		}
	}
	return Decision{Outcome: Allow, Route: n.target, Rule: "allow"}
}
