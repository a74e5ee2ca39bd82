package state

import "errors"

// ErrClassTreeAbsent is returned when compiled class hashes are applied to a state that was
// created without a class tree.
var ErrClassTreeAbsent = errors.New("state has no contract class tree")
