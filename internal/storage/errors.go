package storage

import (
	pkgerrors "edc/pkg/errors"
	"edc/pkg/platform/sentinel"
)

// ErrNotFound is the coded form of the infrastructure sentinel; stores return
// it so errors.Is works against both the sentinel and the domain code.
var ErrNotFound = pkgerrors.Wrap(sentinel.ErrNotFound, pkgerrors.CodeNotFound, "record not found")
