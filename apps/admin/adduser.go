package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/teacher"
)

// addUser updates or creates a teacher.Teacher
func (cli *commandLine) addUser(uname, email, name, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name = core.CleanString(name); name == "" {
		name = uname
	}

	t, err := cli.teachers.GetByUsername(ctx, uname)
	if err != nil {
		if errors.Cause(err) != teacher.ErrNotFound {
			return err
		}
		t = teacher.Teacher{
			Username:  uname,
			FirstName: name,
			Roles:     []string{teacher.RoleTeacher},
		}
	}
	if email != "" {
		t.Email = email
	}
	if isAdmin && !t.IsAdmin() {
		t.Roles = append(t.Roles, teacher.RoleAdmin)
	}
	t.IsActive = true
	if err := t.SetPassword(pwd); err != nil {
		return err
	}
	if t, err = cli.teachers.Save(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "teacher %q saved (id %d)\n", t.Username, t.ID)
	return nil
}
