package main

import (
	"context"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	t, err := cli.teachers.GetByUsername(ctx, uname)
	if err != nil {
		return err
	}
	_, err = cli.teachers.SetPassword(ctx, t, pwd)
	return err
}
