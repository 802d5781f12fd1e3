package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/Skryldev/census-api/models"
	"github.com/Skryldev/census-api/validation"
)

// decodeParticipants reads a JSON array of participant objects and validates
// every entry. The first invalid entry aborts with its index and reason.
func decodeParticipants(r io.Reader, v *validation.Validator) ([]models.CreateParticipantParams, error) {
	var raw []any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("seed: expected a JSON array of participants: %w", err)
	}

	out := make([]models.CreateParticipantParams, 0, len(raw))
	seen := make(map[string]int, len(raw))
	for i, item := range raw {
		p, err := v.ParseCreate(item)
		if err != nil {
			return nil, fmt.Errorf("seed: participant %d: %w", i, err)
		}
		if first, dup := seen[p.Email]; dup {
			return nil, fmt.Errorf("seed: participant %d: email %s repeats participant %d", i, p.Email, first)
		}
		seen[p.Email] = i
		out = append(out, p)
	}
	return out, nil
}
