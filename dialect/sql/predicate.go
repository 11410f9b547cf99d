package sql

// PredicateFunc is a constraint type for predicate functions. It allows
// generic field types to work with any predicate type that is based on
// func(*Selector).
type PredicateFunc interface {
	~func(*Selector)
}

// FieldEQ returns a predicate function that checks the field equals v.
func FieldEQ(name string, v any) func(*Selector) {
	return func(s *Selector) {
		s.Where(EQ(s.C(name), v))
	}
}

// FieldNEQ returns a predicate function that checks the field differs from v.
func FieldNEQ(name string, v any) func(*Selector) {
	return func(s *Selector) {
		s.Where(NEQ(s.C(name), v))
	}
}

// FieldGT returns a predicate function that checks the field is greater than v.
func FieldGT(name string, v any) func(*Selector) {
	return func(s *Selector) {
		s.Where(GT(s.C(name), v))
	}
}

// FieldGTE returns a predicate function that checks the field is greater than or equal to v.
func FieldGTE(name string, v any) func(*Selector) {
	return func(s *Selector) {
		s.Where(GTE(s.C(name), v))
	}
}

// FieldLT returns a predicate function that checks the field is less than v.
func FieldLT(name string, v any) func(*Selector) {
	return func(s *Selector) {
		s.Where(LT(s.C(name), v))
	}
}

// FieldLTE returns a predicate function that checks the field is less than or equal to v.
func FieldLTE(name string, v any) func(*Selector) {
	return func(s *Selector) {
		s.Where(LTE(s.C(name), v))
	}
}

// FieldIsNull returns a predicate function that checks the field is NULL.
func FieldIsNull(name string) func(*Selector) {
	return func(s *Selector) {
		s.Where(IsNull(s.C(name)))
	}
}

// FieldNotNull returns a predicate function that checks the field is not NULL.
func FieldNotNull(name string) func(*Selector) {
	return func(s *Selector) {
		s.Where(NotNull(s.C(name)))
	}
}

// FieldIn returns a predicate function that checks the field value is in vs.
func FieldIn[T any](name string, vs ...T) func(*Selector) {
	return func(s *Selector) {
		v := make([]any, len(vs))
		for i := range vs {
			v[i] = vs[i]
		}
		s.Where(In(s.C(name), v...))
	}
}

// StringField is a generic string field that provides type-safe predicate
// methods. Scaffolded model packages declare one per string column:
//
//	var Email = sql.StringField[predicate.User]("email")
//	session.Find(ctx, &users, user.Email.EQ("a@b.co"))
type StringField[P PredicateFunc] string

// Name returns the field name.
func (f StringField[P]) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f StringField[P]) EQ(v string) P { return P(FieldEQ(string(f), v)) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f StringField[P]) NEQ(v string) P { return P(FieldNEQ(string(f), v)) }

// In returns a predicate that checks if the field value is in the given list.
func (f StringField[P]) In(vs ...string) P { return P(FieldIn(string(f), vs...)) }

// IsNull returns a predicate that checks if the field is NULL.
func (f StringField[P]) IsNull() P { return P(FieldIsNull(string(f))) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f StringField[P]) NotNull() P { return P(FieldNotNull(string(f))) }

// Int64Field is a generic int64 field that provides type-safe predicate methods.
type Int64Field[P PredicateFunc] string

// Name returns the field name.
func (f Int64Field[P]) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f Int64Field[P]) EQ(v int64) P { return P(FieldEQ(string(f), v)) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f Int64Field[P]) NEQ(v int64) P { return P(FieldNEQ(string(f), v)) }

// In returns a predicate that checks if the field value is in the given list.
func (f Int64Field[P]) In(vs ...int64) P { return P(FieldIn(string(f), vs...)) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f Int64Field[P]) GT(v int64) P { return P(FieldGT(string(f), v)) }

// GTE returns a predicate that checks if the field is greater than or equal to the given value.
func (f Int64Field[P]) GTE(v int64) P { return P(FieldGTE(string(f), v)) }

// LT returns a predicate that checks if the field is less than the given value.
func (f Int64Field[P]) LT(v int64) P { return P(FieldLT(string(f), v)) }

// LTE returns a predicate that checks if the field is less than or equal to the given value.
func (f Int64Field[P]) LTE(v int64) P { return P(FieldLTE(string(f), v)) }

// BoolField is a generic boolean field that provides type-safe predicate methods.
type BoolField[P PredicateFunc] string

// Name returns the field name.
func (f BoolField[P]) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f BoolField[P]) EQ(v bool) P { return P(FieldEQ(string(f), v)) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f BoolField[P]) NEQ(v bool) P { return P(FieldNEQ(string(f), v)) }

// TimeField is a generic time field that provides type-safe predicate
// methods. T is the time type (e.g. time.Time).
type TimeField[P PredicateFunc, T any] string

// Name returns the field name.
func (f TimeField[P, T]) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f TimeField[P, T]) EQ(v T) P { return P(FieldEQ(string(f), v)) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f TimeField[P, T]) GT(v T) P { return P(FieldGT(string(f), v)) }

// GTE returns a predicate that checks if the field is greater than or equal to the given value.
func (f TimeField[P, T]) GTE(v T) P { return P(FieldGTE(string(f), v)) }

// LT returns a predicate that checks if the field is less than the given value.
func (f TimeField[P, T]) LT(v T) P { return P(FieldLT(string(f), v)) }

// LTE returns a predicate that checks if the field is less than or equal to the given value.
func (f TimeField[P, T]) LTE(v T) P { return P(FieldLTE(string(f), v)) }

// IsNull returns a predicate that checks if the field is NULL.
func (f TimeField[P, T]) IsNull() P { return P(FieldIsNull(string(f))) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f TimeField[P, T]) NotNull() P { return P(FieldNotNull(string(f))) }
