package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/census-api/validation"
)

const entry = `{"email":"%s","firstname":"A","lastname":"B","dob":"1990-05-17",` +
	`"work":{"companyname":"Acme","salary":1200.5,"currency":"EUR"},"home":{"country":"DE","city":"Berlin"}}`

func participant(email string) string { return strings.Replace(entry, "%s", email, 1) }

func TestDecodeParticipants(t *testing.T) {
	in := "[" + participant("a@b.com") + "," + participant("c@d.org") + "]"

	got, err := decodeParticipants(strings.NewReader(in), validation.New(validation.Options{}))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c@d.org", got[1].Email)
	assert.Equal(t, 1200.5, got[0].Work.Salary)
	assert.Equal(t, "1990-05-17", got[0].Dob.String())
}

func TestDecodeParticipants_Errors(t *testing.T) {
	v := validation.New(validation.Options{})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"not an array", `{"email":"a@b.com"}`, "expected a JSON array"},
		{"invalid entry", "[" + participant("a@b.com") + `,{"email":"x@y.com"}]`, "participant 1: Missing firstname"},
		{"repeated email", "[" + participant("a@b.com") + "," + participant("a@b.com") + "]", "repeats participant 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeParticipants(strings.NewReader(tt.in), v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeParticipants_Empty(t *testing.T) {
	got, err := decodeParticipants(strings.NewReader(`[]`), validation.New(validation.Options{}))
	require.NoError(t, err)
	assert.Empty(t, got)
}
