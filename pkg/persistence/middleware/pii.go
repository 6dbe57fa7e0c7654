package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Mask replaces the value of every masked variable.
const Mask = "***"

type piiMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks the values of variables whose names
// match any of the patterns before they reach the store. Masking is one-way: a restored
// session sees Mask instead of the original value.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, session *domain.Session) error {
	// Clone so the caller's session, which may still be live, keeps its values.
	cloned := session.Clone()
	m.mask(cloned.Seed)
	if cloned.State != nil {
		m.mask(cloned.State.Variables)
	}
	return m.next.Save(ctx, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) mask(vars domain.Variables) {
	for k := range vars {
		for _, p := range m.patterns {
			if p.MatchString(k) {
				vars[k] = Mask
				break
			}
		}
	}
}
