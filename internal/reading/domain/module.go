// Package domain describes reading modules: their generation backends,
// entitlement rules, prize wheels and the request and response shapes.
package domain

import (
	"fmt"
	"sort"
	"strings"

	entitlement "github.com/felixgeelhaar/augur/internal/entitlement/domain"
	generation "github.com/felixgeelhaar/augur/internal/generation/domain"
	prize "github.com/felixgeelhaar/augur/internal/prize/domain"
)

// Module is the configuration record of one reading module. Every module
// runs the same pipeline; only this record differs.
type Module struct {
	Name  string
	Title string

	// Persona is the system instruction sent with every request.
	Persona string
	// AssistantRole is the role name clients use for the module's own
	// turns in conversationHistory.
	AssistantRole string

	// MissingDataCode is returned when required context is absent.
	MissingDataCode Code
	// RequiredFields must be non-empty in the request, besides
	// moduleContextData.
	RequiredFields []string

	Backends     []generation.Backend
	Thresholds   generation.Thresholds
	MinRepairLen int

	FreeLimit int
	Policy    entitlement.PaywallPolicy

	// Hook is appended to every teaser.
	Hook string
	// PaywallMessage is shown with a conversion prompt.
	PaywallMessage string

	Prizes []prize.WeightedPrize
}

// Validate checks that the record can drive a pipeline.
func (m Module) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("module: empty name")
	}
	if len(m.Backends) == 0 {
		return fmt.Errorf("module %s: %w", m.Name, generation.ErrNoBackends)
	}
	if m.FreeLimit < 0 {
		return fmt.Errorf("module %s: negative free limit", m.Name)
	}
	if _, err := entitlement.ParsePaywallPolicy(string(m.Policy)); err != nil {
		return fmt.Errorf("module %s: %w", m.Name, err)
	}
	if _, err := prize.NewTable(m.Prizes); err != nil {
		return fmt.Errorf("module %s: %w", m.Name, err)
	}
	return nil
}

// Catalog indexes modules by name.
type Catalog struct {
	modules map[string]Module
}

// NewCatalog validates and indexes modules. Names are case-insensitive.
func NewCatalog(modules ...Module) (*Catalog, error) {
	c := &Catalog{modules: make(map[string]Module, len(modules))}
	for _, m := range modules {
		m.Name = strings.ToLower(m.Name)
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.modules[m.Name]; dup {
			return nil, fmt.Errorf("module %s registered twice", m.Name)
		}
		c.modules[m.Name] = m
	}
	return c, nil
}

// Get returns a module by name.
func (c *Catalog) Get(name string) (Module, error) {
	m, ok := c.modules[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Module{}, fmt.Errorf("%w: %q", ErrUnknownModule, name)
	}
	return m, nil
}

// Names returns the registered module names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.modules))
	for name := range c.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the modules sorted by name.
func (c *Catalog) All() []Module {
	out := make([]Module, 0, len(c.modules))
	for _, name := range c.Names() {
		out = append(out, c.modules[name])
	}
	return out
}

// Configure returns a catalog with fn applied to each module, validating
// the result.
func (c *Catalog) Configure(fn func(*Module)) (*Catalog, error) {
	modules := c.All()
	for i := range modules {
		fn(&modules[i])
	}
	return NewCatalog(modules...)
}
