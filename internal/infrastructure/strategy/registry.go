package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/domain/shared"
	"github.com/erp/dispensing/internal/infrastructure/strategy/batch"
)

// PickerRegistry holds the available lot pickers by name
type PickerRegistry struct {
	mu       sync.RWMutex
	pickers  map[string]dispensing.LotPicker
	fallback string
}

// NewPickerRegistry creates an empty registry
func NewPickerRegistry() *PickerRegistry {
	return &PickerRegistry{pickers: make(map[string]dispensing.LotPicker)}
}

// NewDefaultPickerRegistry registers the built-in pickers with defaultName as default
func NewDefaultPickerRegistry(defaultName string) (*PickerRegistry, error) {
	r := NewPickerRegistry()
	for _, p := range []dispensing.LotPicker{batch.NewFEFOPicker(), batch.NewFIFOPicker(), batch.NewStandardPicker()} {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	if err := r.SetDefault(defaultName); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a picker; names must be unique
func (r *PickerRegistry) Register(p dispensing.LotPicker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pickers[p.Name()]; exists {
		return shared.ErrInvalidInput.WithMessage(fmt.Sprintf("lot picker '%s' already registered", p.Name()))
	}
	r.pickers[p.Name()] = p
	return nil
}

// SetDefault selects the picker returned for an empty name
func (r *PickerRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pickers[name]; !ok {
		return shared.ErrNotFound.WithMessage(fmt.Sprintf("lot picker '%s' not found", name))
	}
	r.fallback = name
	return nil
}

// Get returns the named picker, or the default when name is empty
func (r *PickerRegistry) Get(name string) (dispensing.LotPicker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.fallback
	}
	p, ok := r.pickers[name]
	if !ok {
		return nil, shared.ErrNotFound.WithMessage(fmt.Sprintf("lot picker '%s' not found", name))
	}
	return p, nil
}

// Names lists registered pickers alphabetically
func (r *PickerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pickers))
	for n := range r.pickers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
