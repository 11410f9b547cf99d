// Package naming implements the naming conventions used to derive physical
// database names from Go identifiers.
//
// All functions are pure and stateless. The conventions are deliberately
// naive: Pluralize applies a handful of suffix rules and does not know about
// irregular English plurals ("person" becomes "persons", not "people").
// Applications that need a different mapping should override names at the
// schema level instead of patching these rules.
package naming

import (
	"strings"
	"unicode"
)

// Snake converts a PascalCase or camelCase identifier to snake_case.
//
// An underscore is inserted at every lower-to-upper and digit-to-upper
// boundary, and before an upper-case letter that starts a new word after an
// acronym run ("HTTPCode" -> "http_code", "UserIDs" -> "user_ids").
// The empty string is returned unchanged.
func Snake(name string) string {
	var (
		b    strings.Builder
		last int // index of the last inserted boundary
	)
	b.Grow(len(name) + 4)
	for i, r := range name {
		if i > 0 && i < len(name)-1 && unicode.IsUpper(r) {
			prev, next := rune(name[i-1]), rune(name[i+1])
			switch {
			case unicode.IsLower(prev) || unicode.IsDigit(prev):
				last = i
				b.WriteByte('_')
			case last != i-1 && unicode.IsLower(next) && unicode.IsLetter(prev):
				// End of an acronym run ("...PCo..." in "HTTPCode").
				last = i
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Pluralize returns the naive English plural of a singular word.
//
// Rules, in order: words ending in "s", "x", "z", "sh" or "ch" get "es";
// words ending in a consonant followed by "y" replace the "y" with "ies";
// everything else gets "s".
func Pluralize(singular string) string {
	if singular == "" {
		return singular
	}
	switch {
	case strings.HasSuffix(singular, "s"),
		strings.HasSuffix(singular, "x"),
		strings.HasSuffix(singular, "z"),
		strings.HasSuffix(singular, "sh"),
		strings.HasSuffix(singular, "ch"):
		return singular + "es"
	case strings.HasSuffix(singular, "y") && len(singular) > 1 && !isVowel(rune(singular[len(singular)-2])):
		return singular[:len(singular)-1] + "ies"
	default:
		return singular + "s"
	}
}

// TableName derives the physical table name for a model type name.
func TableName(modelName string) string {
	return Pluralize(Snake(modelName))
}

// ColumnName derives the physical column name for a struct field name.
func ColumnName(fieldName string) string {
	return Snake(fieldName)
}

// ForeignKey derives the foreign-key column name referencing a model.
func ForeignKey(modelName string) string {
	return Snake(modelName) + "_id"
}

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
