package mapping

import (
	"errors"
	"fmt"
)

// ColumnOption настраивает колонку
type ColumnOption func(*Column)

// Required колонка NOT NULL
func Required() ColumnOption {
	return func(c *Column) { c.Required = true }
}

// Optional колонка допускает NULL (по умолчанию)
func Optional() ColumnOption {
	return func(c *Column) { c.Required = false }
}

// Builder декларативно описывает отображение сущности с состоянием S.
// Ошибки копятся и возвращаются из Build одной пачкой.
type Builder[S any] struct {
	desc     EntityMapping
	hasKey   bool
	useHiLo  bool
	key      Accessor[S]
	columns  []Accessor[S]
	owned    []*OwnedBuilder[S]
	problems []error
}

// NewBuilder начинает описание сущности entity
func NewBuilder[S any](entity string) *Builder[S] {
	return &Builder[S]{desc: EntityMapping{Entity: entity}}
}

// ToTable задаёт таблицу владельца
func (b *Builder[S]) ToTable(name, schema string) *Builder[S] {
	b.desc.Table = Table{Schema: schema, Name: name}
	return b
}

// HasKey задаёт ключевую колонку
func (b *Builder[S]) HasKey(member, column string, acc Accessor[S]) *Builder[S] {
	if b.hasKey {
		b.problems = append(b.problems, fmt.Errorf("key declared twice (%s, %s)", b.desc.Key.Name, column))
		return b
	}
	b.hasKey = true
	b.desc.Key = Column{Member: member, Name: column, Access: AccessProperty, Required: true}
	b.key = acc
	return b
}

// UseHiLo ключ выдаётся блоками из последовательности schema.sequence
func (b *Builder[S]) UseHiLo(sequence, schema string) *Builder[S] {
	b.useHiLo = true
	b.desc.Sequence = &Sequence{Schema: schema, Name: sequence}
	return b
}

// Property привязывает колонку к публичному свойству
func (b *Builder[S]) Property(member, column string, acc Accessor[S], opts ...ColumnOption) *Builder[S] {
	return b.addColumn(member, column, AccessProperty, acc, opts)
}

// Field привязывает колонку к закрытому полю
func (b *Builder[S]) Field(field, column string, acc Accessor[S], opts ...ColumnOption) *Builder[S] {
	return b.addColumn(field, column, AccessField, acc, opts)
}

func (b *Builder[S]) addColumn(member, column string, access Access, acc Accessor[S], opts []ColumnOption) *Builder[S] {
	c := Column{Member: member, Name: column, Access: access}
	for _, opt := range opts {
		opt(&c)
	}
	b.desc.Columns = append(b.desc.Columns, c)
	b.columns = append(b.columns, acc)
	return b
}

// Ignore исключает член модели из отображения
func (b *Builder[S]) Ignore(member string) *Builder[S] {
	b.desc.Ignored = append(b.desc.Ignored, member)
	return b
}

// OwnsOne описывает owned value object, хранящийся в отдельной таблице
func (b *Builder[S]) OwnsOne(navigation, table string, configure func(*OwnedBuilder[S])) *Builder[S] {
	ob := &OwnedBuilder[S]{desc: OwnedMapping{Navigation: navigation, Table: Table{Name: table}}}
	if configure != nil {
		configure(ob)
	}
	b.owned = append(b.owned, ob)
	return b
}

// HasOne связь со справочником schema.table через колонку-член foreignKey
func (b *Builder[S]) HasOne(navigation, schema, table, foreignKey string) *Builder[S] {
	b.desc.References = append(b.desc.References, Reference{
		Navigation: navigation,
		Target:     Table{Schema: schema, Name: table},
		ForeignKey: foreignKey,
	})
	return b
}

// Build проверяет описание и собирает Mapping.
// Любая ошибка конфигурации возвращается как ErrInvalidMapping.
func (b *Builder[S]) Build() (*Mapping[S], error) {
	desc := b.desc
	desc.Owned = nil

	problems := append([]error(nil), b.problems...)
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if desc.Entity == "" {
		report("entity name is required")
	}
	if desc.Table.Name == "" {
		report("table is required")
	}
	if !b.hasKey {
		report("key is required")
	} else {
		if desc.Key.Name == "" {
			report("key column name is required")
		}
		if !b.key.bound() {
			report("key %s has no binding", desc.Key.Name)
		}
	}
	if b.useHiLo && (desc.Sequence == nil || desc.Sequence.Name == "") {
		report("hilo sequence name is required")
	}

	members := make(map[string]bool)
	if b.hasKey {
		members[desc.Key.Member] = true
	}
	problems = append(problems, checkColumns(desc.Table.String(), desc.Key.Name, desc.Columns, b.columns, members)...)

	owned := make(map[string][]Accessor[S], len(b.owned))
	ownedDesc := make(map[string]OwnedMapping, len(b.owned))
	for _, ob := range b.owned {
		od := ob.desc
		if od.Table.Schema == "" {
			od.Table.Schema = desc.Table.Schema
		}
		switch {
		case od.Navigation == "":
			report("owned navigation name is required")
		case members[od.Navigation]:
			report("owned %s: member already mapped", od.Navigation)
		}
		members[od.Navigation] = true

		if od.Table.Name == "" {
			report("owned %s: table is required", od.Navigation)
		}
		if od.ShadowKey == "" {
			report("owned %s: no explicit shadow key", od.Navigation)
		}
		if !ob.withOwner {
			report("owned %s: not attached with WithOwner", od.Navigation)
		}
		problems = append(problems, checkColumns(od.Table.String(), od.ShadowKey, od.Columns, ob.columns, map[string]bool{})...)

		desc.Owned = append(desc.Owned, od)
		owned[od.Navigation] = ob.columns
		ownedDesc[od.Navigation] = od
	}

	for _, ref := range desc.References {
		if ref.Target.Name == "" {
			report("reference %s: target table is required", ref.Navigation)
		}
		if !hasMember(desc.Columns, ref.ForeignKey) {
			report("reference %s: foreign key %q is not a mapped member", ref.Navigation, ref.ForeignKey)
		}
	}

	for _, ignored := range desc.Ignored {
		if members[ignored] {
			report("member %s is both ignored and mapped", ignored)
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: entity %q: %w", ErrInvalidMapping, desc.Entity, errors.Join(problems...))
	}

	return &Mapping[S]{
		desc:      desc,
		key:       b.key,
		columns:   b.columns,
		owned:     owned,
		ownedDesc: ownedDesc,
	}, nil
}

func checkColumns[S any](table, keyColumn string, columns []Column, accs []Accessor[S], members map[string]bool) []error {
	var problems []error
	names := map[string]bool{}
	if keyColumn != "" {
		names[keyColumn] = true
	}
	for i, c := range columns {
		switch {
		case c.Name == "":
			problems = append(problems, fmt.Errorf("%s: member %s has no column name", table, c.Member))
		case names[c.Name]:
			problems = append(problems, fmt.Errorf("%s: duplicate column %s", table, c.Name))
		}
		names[c.Name] = true

		if c.Member == "" {
			problems = append(problems, fmt.Errorf("%s: column %s has no member", table, c.Name))
		} else if members[c.Member] {
			problems = append(problems, fmt.Errorf("%s: member %s mapped twice", table, c.Member))
		}
		members[c.Member] = true

		if !accs[i].bound() {
			problems = append(problems, fmt.Errorf("%s: column %s has no binding", table, c.Name))
		}
	}
	return problems
}

func hasMember(columns []Column, member string) bool {
	for _, c := range columns {
		if c.Member == member {
			return true
		}
	}
	return false
}

// OwnedBuilder описывает owned value object
type OwnedBuilder[S any] struct {
	desc      OwnedMapping
	columns   []Accessor[S]
	withOwner bool
}

// ShadowKey колонка owned таблицы, хранящая ключ владельца (PK и FK одновременно)
func (o *OwnedBuilder[S]) ShadowKey(column string) *OwnedBuilder[S] {
	o.desc.ShadowKey = column
	return o
}

// WithOwner привязывает owned таблицу к владельцу через shadow key
func (o *OwnedBuilder[S]) WithOwner() *OwnedBuilder[S] {
	o.withOwner = true
	return o
}

// Property колонка owned таблицы
func (o *OwnedBuilder[S]) Property(member, column string, acc Accessor[S], opts ...ColumnOption) *OwnedBuilder[S] {
	c := Column{Member: member, Name: column, Access: AccessProperty}
	for _, opt := range opts {
		opt(&c)
	}
	o.desc.Columns = append(o.desc.Columns, c)
	o.columns = append(o.columns, acc)
	return o
}
