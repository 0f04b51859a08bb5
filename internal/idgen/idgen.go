// Package idgen generates short, URL-safe identifiers backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	PlanPrefix  = "pln_"
	EventPrefix = "evt_"
)

var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var Length = 12

func Plan() (string, error) { return WithPrefix(PlanPrefix) }

func Event() (string, error) { return WithPrefix(EventPrefix) }

func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
