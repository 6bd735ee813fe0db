package repositories

import "errors"

// errDB is a sentinel database error shared by repository tests.
var errDB = errors.New("db failure")

func strPtr(s string) *string { return &s }
