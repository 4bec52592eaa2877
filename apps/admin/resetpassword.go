package main

import (
	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(uname)
	if err != nil {
		return err
	}
	if msg := user.ValidatePassword(pwd, usr); msg != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: msg})
	}
	if _, err := cli.usrSvc.SetPassword(usr, pwd); err != nil {
		return err
	}
	return nil
}
