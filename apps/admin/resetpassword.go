package main

import (
	"context"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = core.NowFunc()
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}
