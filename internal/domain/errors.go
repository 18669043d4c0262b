package domain

import "errors"

// ErrInvalidRequest indicates that an evaluation request contains invalid data.
var ErrInvalidRequest = errors.New("invalid evaluation request")

// ErrInvalidScheme indicates that a scheme definition failed validation.
var ErrInvalidScheme = errors.New("invalid scheme definition")

// ErrSchemeNotFound indicates that a scheme ID is absent from the catalog.
var ErrSchemeNotFound = errors.New("scheme not found")

// ErrDuplicateScheme indicates that two definitions share an ID.
var ErrDuplicateScheme = errors.New("duplicate scheme id")

// ErrNoCompleter indicates that an engine was built without a completion client.
var ErrNoCompleter = errors.New("completion client is required")
