package mapping

import "fmt"

// Accessor связывает колонку с полем объекта состояния S.
// Value читает значение для записи, Target отдаёт указатель для Scan, Assign пишет значение из row map.
type Accessor[S any] struct {
	value  func(*S) any
	target func(*S) any
	assign func(*S, any) error
}

// Bind создаёт Accessor по функции, возвращающей указатель на поле состояния.
// Поле может быть закрытым в доменной модели: в S оно представлено как есть.
func Bind[S, V any](ptr func(*S) *V) Accessor[S] {
	if ptr == nil {
		return Accessor[S]{}
	}
	return Accessor[S]{
		value:  func(s *S) any { return *ptr(s) },
		target: func(s *S) any { return ptr(s) },
		assign: func(s *S, v any) error {
			if v == nil {
				var zero V
				*ptr(s) = zero
				return nil
			}
			tv, ok := v.(V)
			if !ok {
				return fmt.Errorf("cannot assign %T to %T", v, *new(V))
			}
			*ptr(s) = tv
			return nil
		},
	}
}

func (a Accessor[S]) bound() bool {
	return a.value != nil
}

// Value значение поля
func (a Accessor[S]) Value(s *S) any {
	return a.value(s)
}

// Target указатель на поле
func (a Accessor[S]) Target(s *S) any {
	return a.target(s)
}

// Assign записывает значение в поле; тип должен совпадать с типом поля
func (a Accessor[S]) Assign(s *S, v any) error {
	return a.assign(s, v)
}
