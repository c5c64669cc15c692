// Package archive keeps the outcome of every completed pick/ban ritual so it
// can be looked up after the live session is gone.
package archive

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
)

const (
	ModeMemory   = "memory"
	ModePostgres = "postgres"
)

// Result is one finished ritual. Code and CompletedAt identify it;
// CompletedAt is kept at microsecond precision to match Postgres.
type Result struct {
	Code        string               `json:"code"`
	Format      string               `json:"format"`
	SideA       string               `json:"sideA"`
	SideB       string               `json:"sideB"`
	Chosen      []engine.ChosenEntry `json:"chosenLog"`
	CompletedAt time.Time            `json:"completedAt"`
}

func ResultFromState(s engine.State, at time.Time) Result {
	return Result{
		Code:        s.Code,
		Format:      string(s.Format),
		SideA:       s.SideA.Name,
		SideB:       s.SideB.Name,
		Chosen:      append([]engine.ChosenEntry(nil), s.Chosen...),
		CompletedAt: at.UTC().Truncate(time.Microsecond),
	}
}

type Store interface {
	// Save is idempotent for a given (Code, CompletedAt).
	Save(ctx context.Context, r Result) error
	// ListByCode returns results newest first.
	ListByCode(ctx context.Context, code string) ([]Result, error)
	Close() error
}

// Open returns the store selected by mode.
func Open(mode, dsn string) (Store, error) {
	switch mode {
	case "", ModeMemory:
		return NewMemoryStore(), nil
	case ModePostgres:
		s, err := OpenGorm(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("invalid archive mode %q (supported: %s, %s)", mode, ModeMemory, ModePostgres)
	}
}

type MemoryStore struct {
	mu     sync.RWMutex
	byCode map[string][]Result
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byCode: make(map[string][]Result)}
}

func (m *MemoryStore) Save(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byCode[r.Code] {
		if existing.CompletedAt.Equal(r.CompletedAt) {
			return nil
		}
	}
	r.Chosen = append([]engine.ChosenEntry(nil), r.Chosen...)
	m.byCode[r.Code] = append(m.byCode[r.Code], r)
	return nil
}

func (m *MemoryStore) ListByCode(_ context.Context, code string) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.byCode[code])
	slices.SortFunc(out, func(a, b Result) int { return b.CompletedAt.Compare(a.CompletedAt) })
	if out == nil {
		out = []Result{}
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
