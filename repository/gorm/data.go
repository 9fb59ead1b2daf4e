package gorm

import "regexp"

// identifier guards table and column names interpolated into the record queries.
var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
