package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_roles(t *testing.T) {
	tests := []struct {
		name          string
		roles         []string
		wantModerator bool
		wantStudent   bool
	}{
		{name: "no roles"},
		{name: "student", roles: []string{RoleStudent}, wantStudent: true},
		{name: "teacher", roles: []string{RoleTeacher}, wantModerator: true},
		{name: "admin principal", roles: []string{RoleAdminPrincipal}, wantModerator: true},
		{name: "student & teacher", roles: []string{RoleStudent, RoleTeacher}, wantModerator: true, wantStudent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := User{Roles: tt.roles}
			assert.Equal(t, tt.wantModerator, usr.IsModerator())
			assert.Equal(t, tt.wantStudent, usr.IsStudent())
		})
	}
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Jane", (&User{Name: "Jane", Username: "jane"}).DisplayName())
	assert.Equal(t, "jane", (&User{Username: "jane", Email: "j@test.cd"}).DisplayName())
	assert.Equal(t, "j@test.cd", (&User{Email: "j@test.cd"}).DisplayName())
}

func TestUser_Password(t *testing.T) {
	var usr User
	assert.NoError(t, usr.SetPassword("Pa$$w0rd!"))
	assert.NoError(t, usr.CheckPassword("Pa$$w0rd!"))
	assert.Error(t, usr.CheckPassword("nope"))
}

func TestValidatePassword(t *testing.T) {
	usr := User{Name: "Jane Doe", Username: "janedoe", Email: "jane@test.cd"}
	tests := []struct {
		name string
		pwd  string
		want string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenText},
		{name: "whitespace", pwd: "Abcd 1234!", want: pwdNoSpaceText},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumText},
		{name: "not complex", pwd: "abcdefgh1", want: pwdComplexityText},
		{name: "similar to username", pwd: "Janedoe1!", want: pwdAttrSimText},
		{name: "ok", pwd: "Tr0ub4dor&3x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidatePassword(tt.pwd, usr))
		})
	}
}
