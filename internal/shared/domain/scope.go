package domain

import (
	"errors"
	"strings"
)

var (
	ErrEmptyModule  = errors.New("module is required")
	ErrEmptySession = errors.New("session id is required")
	ErrInvalidScope = errors.New("scope parts must not contain ':'")
)

// Scope identifies one session's state within one reading module. All
// entitlement and prize state is keyed by it; scopes never share state.
type Scope struct {
	Module  string
	Session string
}

// NewScope validates and builds a scope.
func NewScope(module, session string) (Scope, error) {
	module = strings.ToLower(strings.TrimSpace(module))
	session = strings.TrimSpace(session)
	if module == "" {
		return Scope{}, ErrEmptyModule
	}
	if session == "" {
		return Scope{}, ErrEmptySession
	}
	if strings.Contains(module, ":") || strings.Contains(session, ":") {
		return Scope{}, ErrInvalidScope
	}
	return Scope{Module: module, Session: session}, nil
}

// Key renders the scope as "module:session".
func (s Scope) Key() string {
	return s.Module + ":" + s.Session
}

func (s Scope) String() string {
	return s.Key()
}
