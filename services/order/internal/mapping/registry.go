package mapping

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Describer отдаёт описание отображения; реализуется *Mapping[S]
type Describer interface {
	Describe() EntityMapping
}

// Registry хранит отображения сущностей процесса.
// Повторная регистрация того же описания ничего не меняет.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]EntityMapping
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]EntityMapping)}
}

// Register добавляет отображение. Другое описание под тем же именем сущности даёт ErrConflictingMapping.
func (r *Registry) Register(m Describer) error {
	desc := m.Describe()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.entities[desc.Entity]
	if !ok {
		r.entities[desc.Entity] = desc
		return nil
	}
	if reflect.DeepEqual(existing, desc) {
		return nil
	}
	return fmt.Errorf("%w: entity %q is already mapped to %s", ErrConflictingMapping, desc.Entity, existing.Table)
}

// Lookup возвращает описание по имени сущности
func (r *Registry) Lookup(entity string) (EntityMapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.entities[entity]
	return m, ok
}

// Entities имена зарегистрированных сущностей по алфавиту
func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entities))
	for name := range r.entities {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
