package main

import (
	"fmt"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core/user"
)

var errUnknownRole = errors.New("unknown role")

// token prints a signed API token, for operators and local testing.
func (cli *commandLine) token(sub, role, name string) error {
	if !user.IsKnownRole(role) {
		return errors.Wrapf(errUnknownRole, "%q", role)
	}
	usr := user.User{ID: sub, Name: name, Roles: []string{role}}
	tok, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, cli.conf), cli.conf)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, tok)
	return nil
}
