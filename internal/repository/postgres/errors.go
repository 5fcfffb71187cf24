package postgres

import "strings"

// SQLSTATE checks. pgx surfaces the code in the error text, which keeps
// these helpers working against pgxmock as well.

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23503")
}

func isNotNullViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23502")
}
