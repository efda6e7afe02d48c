// Package util contains any functions used across the application that
// don't match any other package
package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns a collision resistant id used for content records and
// stored file names.
func NewID() string {
	id, err := gonanoid.Generate(idAlphabet, 16)
	if err != nil {
		// Only fails on a broken alphabet/length combination
		panic(err)
	}

	return id
}

// ShortID returns a short id used for request tracing.
func ShortID() string {
	id, err := gonanoid.Generate(idAlphabet, 10)
	if err != nil {
		panic(err)
	}

	return id
}
