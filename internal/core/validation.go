package core

// validation.go checks converted values against their column constraints.
//
// Two rules apply, in order:
//  1. Nullability: an explicit null is rejected unless the column allows null
//  2. Allowed values: a non-null value must be in the column's allowed set,
//     when the set is non-empty
//
// A failing value produces exactly one error entry; success is silent.

import "fmt"

// Validate reports whether v satisfies col's constraints, logging one
// data_validation error at location when it does not.
func Validate(v Value, col Column, location int, log *AuditLog) bool {
	if msg := check(v, col); msg != "" {
		log.Error(CategoryValidation, location, col, msg)
		return false
	}
	return true
}

// check returns the validation message for v, or "" when v is acceptable.
func check(v Value, col Column) string {
	if v.IsNull() {
		if col.AllowNull {
			return ""
		}
		return fmt.Sprintf("Null value found in '%s', which does not allow null.", col.Name)
	}

	if !col.allows(v) {
		return fmt.Sprintf("Invalid Data in '%s'. Value found was: '%s' and allowed values must be within: (%s)",
			col.Name, v, col.allowedList())
	}
	return ""
}
