package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/user"
)

var roleFlags = map[string]string{
	"admin":   user.RoleAdmin,
	"teacher": user.RoleTeacher,
	"student": user.RoleStudent,
}

func parseRoles(s string) ([]string, error) {
	names := core.SplitList(s)
	roles := make([]string, 0, len(names))
	for _, name := range names {
		role, ok := roleFlags[name]
		if !ok {
			return nil, fmt.Errorf("unknown role %q", name)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, roleNames, pwd string) error {
	roles, err := parseRoles(roleNames)
	if err != nil {
		return err
	}

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := cli.usrSvc.GetByUsernameOrEmail(lookup)
	switch {
	case err == nil:
		return cli.updateUser(usr, name, roles, pwd)
	case errors.Cause(err) != core.ErrNotFound:
		return err
	}

	nu := user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           roles,
	}
	if err = nu.Validate(cli.validate, cli.usrSvc); err != nil {
		return core.TranslateValidationErrors(err, cli.translator)
	}
	if usr, err = cli.usrSvc.Create(nu); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created user %s (%s)\n", usr.DisplayName(), usr.ID)
	return nil
}

func (cli *commandLine) updateUser(usr user.User, name string, roles []string, pwd string) error {
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if len(roles) > 0 {
		usr.Roles = roles
	}
	if msg := user.ValidatePassword(pwd, usr); msg != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: msg})
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.IsActive = true
	if _, err := cli.usrRepo.UpdateUser(context.Background(), usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "updated user %s (%s)\n", usr.DisplayName(), usr.ID)
	return nil
}
