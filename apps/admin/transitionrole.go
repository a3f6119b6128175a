package main

import (
	"context"
	"fmt"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/user"
)

// transitionRole switches roles on behalf of the user; the audit entry has no actor.
func (cli *commandLine) transitionRole(email, role string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	usr, rt, err := cli.transitions.TransitionRole(ctx, "", usr.ID, role)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s -> %s\n", usr.Email, rt.FromRole, rt.ToRole)
	return nil
}
