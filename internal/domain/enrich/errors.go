package enrich

import "errors"

// ErrLoadCatalog is returned when the catalog file cannot be read or decoded.
var ErrLoadCatalog = errors.New("load enrichment catalog failed")
