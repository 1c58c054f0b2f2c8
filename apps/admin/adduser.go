package main

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, email, pwd, roles, grade string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	parsedRoles, err := parseRoles(roles)
	if err != nil {
		return err
	}
	if grade != "" && !core.GradeLevel(grade).Valid() {
		return errors.Errorf("unknown grade level %q", grade)
	}

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	create := false
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{
			ID:        uuid.New().String(),
			Email:     email,
			CreatedAt: time.Now().UTC(),
		}
		create = true
	}
	if name != "" {
		usr.Name = name
	}
	if len(parsedRoles) > 0 {
		usr.Roles = parsedRoles
	}
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if create {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	if err != nil {
		return err
	}

	if grade != "" && usr.IsStudent() {
		// keep whatever else the profile holds, such as the registration code
		prof, err := cli.usrRepo.GetProfile(ctx, usr.ID)
		if err != nil && errors.Cause(err) != user.ErrNotFound {
			return err
		}
		prof.UserID = usr.ID
		prof.GradeLevel = null.StringFrom(grade)
		if _, err := cli.usrRepo.UpsertProfile(ctx, prof); err != nil {
			return err
		}
		return cli.schSvc.ResyncStudentEnrollments(ctx, usr.ID)
	}
	return nil
}

func parseRoles(roles string) ([]string, error) {
	parsed := make([]string, 0, len(user.AllRoles))
	for _, role := range strings.Split(roles, ",") {
		role = core.CleanString(role, true /* lower */)
		if role == "" {
			continue
		}
		if !user.HasAnyRole(user.AllRoles, []string{role}) {
			return nil, errors.Errorf("unknown role %q", role)
		}
		parsed = append(parsed, role)
	}
	return parsed, nil
}
