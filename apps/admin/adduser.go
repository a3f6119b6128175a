package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/user"
)

// addUser updates or creates a user.User; new users are clients.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return err
		}
		now := core.NowFunc()
		usr = user.User{
			Email:      email,
			Role:       user.RoleClient,
			StaffRoles: []string{},
			Locale:     core.DefaultLocale,
			CreatedAt:  now,
		}
	}
	if name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = email
	}
	if isAdmin {
		usr.StaffRoles = append([]string(nil), user.StaffRoles...)
	}
	usr.SetActive(true)
	usr.UpdatedAt = core.NowFunc()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr)
	return err
}
