package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/rileyhilliard/vmwatch/internal/errors"
)

// StaticRegistry serves credentials declared in the config file. It is
// read-only.
type StaticRegistry struct {
	creds map[string]Credential
	order []string
}

// NewStatic builds a registry from creds. Labels must be unique and every
// credential must validate.
func NewStatic(creds []Credential) (*StaticRegistry, error) {
	r := &StaticRegistry{creds: make(map[string]Credential, len(creds))}
	for _, c := range creds {
		c = c.Normalize()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.creds[c.Label]; dup {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' is declared twice", c.Label),
				"Host labels in the hosts list must be unique")
		}
		r.creds[c.Label] = c
		r.order = append(r.order, c.Label)
	}
	sort.Strings(r.order)
	return r, nil
}

// Resolve implements Registry.
func (r *StaticRegistry) Resolve(ctx context.Context, label string) (Credential, error) {
	c, ok := r.creds[label]
	if !ok {
		return Credential{}, errors.NotFound(label)
	}
	return c, nil
}

// List implements Registry.
func (r *StaticRegistry) List(ctx context.Context) ([]Host, error) {
	hosts := make([]Host, 0, len(r.order))
	for _, label := range r.order {
		hosts = append(hosts, r.creds[label].Host())
	}
	return hosts, nil
}

var _ Registry = (*StaticRegistry)(nil)
