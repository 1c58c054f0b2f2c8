package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAnyRole(t *testing.T) {
	tests := []struct {
		name     string
		held     []string
		required []string
		want     bool
	}{
		{name: "empty held never passes", held: nil, required: nil, want: false},
		{name: "empty held with requirement", held: nil, required: []string{RoleAdmin}, want: false},
		{name: "no requirement passes any holder", held: []string{RoleStudent}, required: nil, want: true},
		{name: "exact match", held: []string{RoleTeacher}, required: []string{RoleTeacher}, want: true},
		{name: "no match", held: []string{RoleStudent}, required: []string{RoleTeacher}, want: false},
		{name: "any of several required", held: []string{RoleTeacher}, required: []string{RoleAdmin, RoleTeacher}, want: true},
		{name: "several held one required", held: []string{RoleTeacher, RoleStudent}, required: []string{RoleStudent}, want: true},
		{name: "unknown role held", held: []string{"janitor"}, required: []string{RoleAdmin}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasAnyRole(tt.held, tt.required))
		})
	}
}

func TestUser_roleHelpers(t *testing.T) {
	usr := User{Roles: []string{RoleTeacher, RoleStudent}}
	assert.False(t, usr.IsAdmin())
	assert.True(t, usr.IsTeacher())
	assert.True(t, usr.IsStudent())

	none := User{}
	assert.False(t, none.IsAdmin())
	assert.False(t, none.IsTeacher())
	assert.False(t, none.IsStudent())
}

func TestUser_password(t *testing.T) {
	var usr User
	assert.NoError(t, usr.SetPassword("s3cret"))
	assert.NoError(t, usr.CheckPassword("s3cret"))
	assert.Error(t, usr.CheckPassword("nope"))
}
