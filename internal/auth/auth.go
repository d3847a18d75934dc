// Package auth decides whether a caller's granted scopes satisfy a
// requirement.
//
// Scopes are opaque strings. The default satisfier treats a granted scope
// ending in '*' as a prefix match; callers with a different grammar plug in
// their own Satisfier.
package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Anonymous is the client id of callers that presented no credentials.
const Anonymous = "anonymous"

// Credentials identify a caller and the scopes it holds.
type Credentials struct {
	ClientID string
	Scopes   []string
}

// Requirement is a boolean expression over scopes. A leaf names one scope;
// AllOf and AnyOf combine nested requirements. The zero Requirement is
// satisfied by anyone.
type Requirement struct {
	Scope string
	AllOf []Requirement
	AnyOf []Requirement
}

// Scope returns a requirement for a single scope.
func Scope(s string) Requirement {
	return Requirement{Scope: s}
}

// AllOf returns a requirement satisfied when every scope is held.
func AllOf(scopes ...string) Requirement {
	r := Requirement{AllOf: make([]Requirement, 0, len(scopes))}
	for _, s := range scopes {
		r.AllOf = append(r.AllOf, Scope(s))
	}
	return r
}

// AnyOf returns a requirement satisfied when at least one scope is held.
func AnyOf(scopes ...string) Requirement {
	r := Requirement{AnyOf: make([]Requirement, 0, len(scopes))}
	for _, s := range scopes {
		r.AnyOf = append(r.AnyOf, Scope(s))
	}
	return r
}

// Leaves returns every scope named in the requirement, depth first.
func (r Requirement) Leaves() []string {
	var out []string
	if r.Scope != "" {
		out = append(out, r.Scope)
	}
	for _, sub := range r.AllOf {
		out = append(out, sub.Leaves()...)
	}
	for _, sub := range r.AnyOf {
		out = append(out, sub.Leaves()...)
	}
	return out
}

// Satisfier reports whether granted scopes meet a requirement.
type Satisfier interface {
	Satisfies(granted []string, required Requirement) bool
}

// ScopeSatisfier matches scopes exactly, or by prefix when the granted
// scope ends in '*'.
type ScopeSatisfier struct{}

// Satisfies implements Satisfier.
func (s ScopeSatisfier) Satisfies(granted []string, required Requirement) bool {
	if required.Scope != "" && !s.holds(granted, required.Scope) {
		return false
	}
	for _, sub := range required.AllOf {
		if !s.Satisfies(granted, sub) {
			return false
		}
	}
	if len(required.AnyOf) > 0 {
		for _, sub := range required.AnyOf {
			if s.Satisfies(granted, sub) {
				return true
			}
		}
		return false
	}
	return true
}

func (ScopeSatisfier) holds(granted []string, scope string) bool {
	for _, g := range granted {
		if g == scope {
			return true
		}
		if prefix, ok := strings.CutSuffix(g, "*"); ok && strings.HasPrefix(scope, prefix) {
			return true
		}
	}
	return false
}

// Evaluator checks credentials against requirements.
type Evaluator struct {
	satisfier Satisfier
	allowAll  bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithSatisfier replaces the default scope grammar.
func WithSatisfier(s Satisfier) Option {
	return func(e *Evaluator) {
		e.satisfier = s
	}
}

// WithAllowAll makes the evaluator grant every request.
func WithAllowAll() Option {
	return func(e *Evaluator) {
		e.allowAll = true
	}
}

// NewEvaluator returns an evaluator using ScopeSatisfier unless overridden.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{satisfier: ScopeSatisfier{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize returns nil when creds satisfy req, and an INSUFFICIENT_SCOPES
// error listing the missing scopes otherwise.
func (e *Evaluator) Authorize(creds Credentials, req Requirement) error {
	if e.allowAll || e.satisfier.Satisfies(creds.Scopes, req) {
		return nil
	}

	var missing []string
	for _, leaf := range req.Leaves() {
		if !e.satisfier.Satisfies(creds.Scopes, Scope(leaf)) {
			missing = append(missing, leaf)
		}
	}

	clientID := creds.ClientID
	if clientID == "" {
		clientID = Anonymous
	}

	return errors.New("client lacks the scopes required for this operation", errors.CategoryAuthz).
		WithCode(errors.CodeForbidden).
		WithTextCode("INSUFFICIENT_SCOPES").
		WithMetadata(map[string]any{
			"clientId": clientID,
			"missing":  missing,
		})
}
