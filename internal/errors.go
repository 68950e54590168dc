package internal

import "errors"

// Validation failures on input.
var ErrInvalidURL = errors.New("invalid url")
var ErrInsecureScheme = errors.New("http is not a valid protocol")
var ErrLabelRequired = errors.New("label is required")
var ErrInvalidLabel = errors.New("invalid label")

// Conflict: the label namespace is globally unique.
var ErrLabelTaken = errors.New("label already taken")

var ErrNotFound = errors.New("short link not found")
var ErrNotOwner = errors.New("not the owner of this short link")
var ErrUnauthorized = errors.New("unauthorized")

// Infrastructure failures, retryable by the caller.
var ErrStoreUnavailable = errors.New("store unavailable")
var ErrLabelSpaceExhausted = errors.New("could not allocate a free label")
