package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Signup(t *testing.T) {
	v := newValidator()
	valid := SignupRequest{Name: "Alice", Username: "alice_1", Email: "a@x.com", Password: "secret1"}

	tests := []struct {
		name      string
		mutate    func(r *SignupRequest)
		wantField string
	}{
		{name: "valid", mutate: func(*SignupRequest) {}},
		{name: "underscore start", mutate: func(r *SignupRequest) { r.Username = "_alice" }},
		{name: "empty name", mutate: func(r *SignupRequest) { r.Name = "" }, wantField: "name"},
		{name: "long name", mutate: func(r *SignupRequest) { r.Name = strings.Repeat("a", 51) }, wantField: "name"},
		{name: "short username", mutate: func(r *SignupRequest) { r.Username = "abc" }, wantField: "username"},
		{name: "long username", mutate: func(r *SignupRequest) { r.Username = strings.Repeat("a", 16) }, wantField: "username"},
		{name: "digit start", mutate: func(r *SignupRequest) { r.Username = "9lives" }, wantField: "username"},
		{name: "dash in username", mutate: func(r *SignupRequest) { r.Username = "al-ice" }, wantField: "username"},
		{name: "reserved username", mutate: func(r *SignupRequest) { r.Username = "LOGIN" }, wantField: "username"},
		{name: "bad email", mutate: func(r *SignupRequest) { r.Email = "nope" }, wantField: "email"},
		{name: "short password", mutate: func(r *SignupRequest) { r.Password = "12345" }, wantField: "password"},
		{name: "password over bcrypt limit", mutate: func(r *SignupRequest) { r.Password = strings.Repeat("p", 100) }},
		{name: "long password", mutate: func(r *SignupRequest) { r.Password = strings.Repeat("p", 256) }, wantField: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := validate(v, &req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.wantField)
		})
	}
}

func TestValidate_ReservedMessage(t *testing.T) {
	err := validate(newValidator(), &SignupRequest{Name: "A", Username: "search", Email: "a@x.com", Password: "secret1"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "This username is not allowed.", verr.Fields["username"])
}
