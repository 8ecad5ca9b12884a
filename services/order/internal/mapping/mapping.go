// Package mapping описывает декларативное отображение агрегата на таблицы:
// ключ с HiLo-последовательностью, колонки с привязкой к полям или свойствам,
// owned value objects в отдельной таблице с явным shadow key и ссылки на справочники.
package mapping

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMapping конфигурация отображения некорректна
	ErrInvalidMapping = errors.New("invalid mapping")
	// ErrConflictingMapping под тем же именем уже зарегистрировано другое отображение
	ErrConflictingMapping = errors.New("conflicting mapping")
)

// Access способ привязки колонки
type Access int

const (
	// AccessProperty колонка привязана к публичному свойству
	AccessProperty Access = iota
	// AccessField колонка привязана к закрытому полю (backing field)
	AccessField
)

func (a Access) String() string {
	if a == AccessField {
		return "field"
	}
	return "property"
}

// Table имя таблицы со схемой
type Table struct {
	Schema string
	Name   string
}

func (t Table) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Sequence последовательность для HiLo ключа
type Sequence struct {
	Schema string
	Name   string
}

func (s Sequence) String() string {
	if s.Schema == "" {
		return s.Name
	}
	return s.Schema + "." + s.Name
}

// Column колонка и член модели, к которому она привязана
type Column struct {
	Member   string
	Name     string
	Access   Access
	Required bool
}

// OwnedMapping owned value object: своя таблица, shadow key = ключ владельца
type OwnedMapping struct {
	Navigation string
	Table      Table
	ShadowKey  string
	Columns    []Column
}

// Reference связь один-к-одному со справочником через поле внешнего ключа
type Reference struct {
	Navigation string
	Target     Table
	ForeignKey string
}

// EntityMapping описание отображения без привязок к коду; сравнимо через reflect.DeepEqual
type EntityMapping struct {
	Entity     string
	Table      Table
	Key        Column
	Sequence   *Sequence
	Columns    []Column
	Owned      []OwnedMapping
	References []Reference
	Ignored    []string
}

// ColumnNames ключ и колонки владельца в порядке объявления
func (m EntityMapping) ColumnNames() []string {
	out := make([]string, 0, len(m.Columns)+1)
	out = append(out, m.Key.Name)
	for _, c := range m.Columns {
		out = append(out, c.Name)
	}
	return out
}

// OwnedByNavigation ищет owned по имени навигации
func (m EntityMapping) OwnedByNavigation(navigation string) (OwnedMapping, bool) {
	for _, o := range m.Owned {
		if o.Navigation == navigation {
			return o, true
		}
	}
	return OwnedMapping{}, false
}

// ColumnNames shadow key и колонки owned таблицы
func (o OwnedMapping) ColumnNames() []string {
	out := make([]string, 0, len(o.Columns)+1)
	out = append(out, o.ShadowKey)
	for _, c := range o.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Mapping собранное отображение для состояния S
type Mapping[S any] struct {
	desc      EntityMapping
	key       Accessor[S]
	columns   []Accessor[S]
	owned     map[string][]Accessor[S]
	ownedDesc map[string]OwnedMapping
}

// Describe возвращает описание отображения
func (m *Mapping[S]) Describe() EntityMapping {
	return m.desc
}

// KeyValue значение ключа
func (m *Mapping[S]) KeyValue(s *S) any {
	return m.key.Value(s)
}

// Values значения ключа и колонок в порядке ColumnNames
func (m *Mapping[S]) Values(s *S) []any {
	out := make([]any, 0, len(m.columns)+1)
	out = append(out, m.key.Value(s))
	for _, a := range m.columns {
		out = append(out, a.Value(s))
	}
	return out
}

// Targets указатели для Scan в порядке ColumnNames
func (m *Mapping[S]) Targets(s *S) []any {
	out := make([]any, 0, len(m.columns)+1)
	out = append(out, m.key.Target(s))
	for _, a := range m.columns {
		out = append(out, a.Target(s))
	}
	return out
}

// Row строка владельца в виде column -> value
func (m *Mapping[S]) Row(s *S) map[string]any {
	names := m.desc.ColumnNames()
	values := m.Values(s)
	row := make(map[string]any, len(names))
	for i, name := range names {
		row[name] = values[i]
	}
	return row
}

// Load заполняет S из строки владельца
func (m *Mapping[S]) Load(s *S, row map[string]any) error {
	if err := m.key.Assign(s, row[m.desc.Key.Name]); err != nil {
		return fmt.Errorf("column %s: %w", m.desc.Key.Name, err)
	}
	for i, c := range m.desc.Columns {
		if err := m.columns[i].Assign(s, row[c.Name]); err != nil {
			return fmt.Errorf("column %s: %w", c.Name, err)
		}
	}
	return nil
}

// OwnedValues значения owned строки: shadow key (= ключ владельца) и колонки
func (m *Mapping[S]) OwnedValues(navigation string, s *S) ([]any, error) {
	accs, ok := m.owned[navigation]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no owned %q", ErrInvalidMapping, m.desc.Entity, navigation)
	}
	out := make([]any, 0, len(accs)+1)
	out = append(out, m.key.Value(s))
	for _, a := range accs {
		out = append(out, a.Value(s))
	}
	return out, nil
}

// OwnedTargets указатели для Scan owned строки; shadow key сканируется в shadow
func (m *Mapping[S]) OwnedTargets(navigation string, s *S, shadow any) ([]any, error) {
	accs, ok := m.owned[navigation]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no owned %q", ErrInvalidMapping, m.desc.Entity, navigation)
	}
	out := make([]any, 0, len(accs)+1)
	out = append(out, shadow)
	for _, a := range accs {
		out = append(out, a.Target(s))
	}
	return out, nil
}

// OwnedRow owned строка в виде column -> value
func (m *Mapping[S]) OwnedRow(navigation string, s *S) (map[string]any, error) {
	values, err := m.OwnedValues(navigation, s)
	if err != nil {
		return nil, err
	}
	names := m.ownedDesc[navigation].ColumnNames()
	row := make(map[string]any, len(names))
	for i, name := range names {
		row[name] = values[i]
	}
	return row, nil
}

// LoadOwned заполняет owned часть S; shadow key не пишется в S
func (m *Mapping[S]) LoadOwned(navigation string, s *S, row map[string]any) error {
	accs, ok := m.owned[navigation]
	if !ok {
		return fmt.Errorf("%w: %s has no owned %q", ErrInvalidMapping, m.desc.Entity, navigation)
	}
	for i, c := range m.ownedDesc[navigation].Columns {
		if err := accs[i].Assign(s, row[c.Name]); err != nil {
			return fmt.Errorf("%s column %s: %w", navigation, c.Name, err)
		}
	}
	return nil
}
