package user

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"all character classes", "Correct1!", true},
		{"too short", "Ab1!", false},
		{"no uppercase", "correct1!", false},
		{"no digit", "Correct!!", false},
		{"no special", "Correct11", false},
		{"only letters", "CorrectPassword", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, ok := validatePassword(tc.password)
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				require.NotEmpty(t, msg)
			}
		})
	}
}

func TestValidateRegisterInput(t *testing.T) {
	valid := RegisterInput{
		Username: "alice_01",
		Email:    "a@b.com",
		Password: "Correct1!",
		FullName: "Alice Example",
	}

	msg, ok := validateRegisterInput(valid)
	require.True(t, ok, msg)

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"username with spaces", func(in *RegisterInput) { in.Username = "al ic e" }},
		{"username too short", func(in *RegisterInput) { in.Username = "ab" }},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"full name too short", func(in *RegisterInput) { in.FullName = "ab" }},
		{"weak password", func(in *RegisterInput) { in.Password = "password" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			msg, ok := validateRegisterInput(in)
			require.False(t, ok)
			require.NotEmpty(t, msg)
		})
	}
}
