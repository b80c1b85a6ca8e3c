package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/bankspec/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Resolver expands {{...}} references in step values. It is safe for
// concurrent use; each test gets its own Clone.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	funcs     *builtin.Registry
	lookupEnv func(string) (string, bool)
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]string),
		funcs:     builtin.NewRegistry(),
		lookupEnv: os.LookupEnv,
	}
}

func (r *Resolver) SetVariables(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

func (r *Resolver) GetVariable(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

// resolveExpr returns the expansion of one {{expr}} and whether it resolved.
func (r *Resolver) resolveExpr(expr string) (string, bool, error) {
	expr = strings.TrimSpace(expr)

	if name, isEnv := strings.CutPrefix(expr, "$"); isEnv {
		v, ok := r.lookupEnv(name)
		return v, ok, nil
	}

	if strings.Contains(expr, "(") {
		return r.funcs.Call(expr)
	}

	v, ok := r.GetVariable(expr)
	return v, ok, nil
}

// Resolve expands every reference it can and leaves the rest untouched.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		v, ok, err := r.resolveExpr(match[2 : len(match)-2])
		if !ok || err != nil {
			return match
		}
		return v
	})
}

// ResolveStrict expands input and fails on any unresolved reference or
// failing function call.
func (r *Resolver) ResolveStrict(input string) (string, error) {
	var firstErr error
	out := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		v, ok, err := r.resolveExpr(expr)
		if firstErr != nil {
			return match
		}
		switch {
		case err != nil:
			firstErr = err
		case !ok:
			firstErr = fmt.Errorf("unresolved variable: %s", expr)
		default:
			return v
		}
		return match
	})
	return out, firstErr
}

// GetUnresolvedVariables lists the references Resolve would leave in place.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var unresolved []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if _, ok, err := r.resolveExpr(expr); !ok || err != nil {
			unresolved = append(unresolved, expr)
		}
	}
	return unresolved
}

func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}

func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	clone.lookupEnv = r.lookupEnv
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	return clone
}
