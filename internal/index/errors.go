package index

import "errors"

// ErrVectorLengthMismatch means a vector blob does not hold len(id_map) rows of dim floats.
var ErrVectorLengthMismatch = errors.New("vector length mismatch")

// ErrDimensionMismatch indicates an embedding does not fit the index width.
var ErrDimensionMismatch = errors.New("embedding dimension does not match index")
