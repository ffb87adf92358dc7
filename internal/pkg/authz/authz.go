// Package authz enforces role based access with casbin. Policies are static and come
// from configuration, so the adapter is read-only.
package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/persist"
	"github.com/samber/lo"
)

var (
	// ErrReadOnly is returned by every adapter write.
	ErrReadOnly = errors.New("authz: policies are read-only")
	// ErrMalformedRule is returned for policy or grant entries that do not parse.
	ErrMalformedRule = errors.New("authz: malformed rule")
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// Authorizer decides whether a caller may perform act on obj.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

// New parses policies ("role|object|action") and grants ("subject:role").
func New(policies, grants []string) (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	adapter, err := NewAdapter(policies, grants)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	e.EnableAutoSave(false)

	return &Authorizer{enforcer: e}, nil
}

// Allowed checks the subject first and then each role carried by its token.
func (a *Authorizer) Allowed(subject string, roles []string, obj, act string) (bool, error) {
	for _, sub := range lo.Uniq(append([]string{subject}, roles...)) {
		if sub == "" {
			continue
		}
		ok, err := a.enforcer.Enforce(sub, obj, act)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Adapter feeds casbin a fixed set of policy lines.
type Adapter struct {
	lines [][]string
}

var _ persist.Adapter = (*Adapter)(nil)

func NewAdapter(policies, grants []string) (*Adapter, error) {
	lines := make([][]string, 0, len(policies)+len(grants))

	for _, raw := range policies {
		parts := lo.Map(strings.Split(raw, "|"), func(s string, _ int) string { return strings.TrimSpace(s) })
		if len(parts) != 3 || lo.Contains(parts, "") {
			return nil, fmt.Errorf("%w: policy %q", ErrMalformedRule, raw)
		}
		lines = append(lines, append([]string{"p"}, parts...))
	}

	for _, raw := range grants {
		sub, role, ok := strings.Cut(raw, ":")
		sub, role = strings.TrimSpace(sub), strings.TrimSpace(role)
		if !ok || sub == "" || role == "" {
			return nil, fmt.Errorf("%w: grant %q", ErrMalformedRule, raw)
		}
		lines = append(lines, []string{"g", sub, role})
	}

	return &Adapter{lines: lines}, nil
}

func (a *Adapter) LoadPolicy(m model.Model) error {
	for _, line := range a.lines {
		if err := persist.LoadPolicyArray(line, m); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) SavePolicy(model.Model) error             { return ErrReadOnly }
func (a *Adapter) AddPolicy(string, string, []string) error { return ErrReadOnly }

func (a *Adapter) RemovePolicy(string, string, []string) error { return ErrReadOnly }

func (a *Adapter) RemoveFilteredPolicy(string, string, int, ...string) error {
	return ErrReadOnly
}
