package main

import (
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword             // mockable
	gooseRunFunc     = database.RunMigrationCommand // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sqlx.DB
	usrRepo user.Repository
	schSvc  school.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -email EMAIL [-name NAME] [-roles admin,teacher,student] [-grade GRADE] - create or update a user")
	fmt.Println("  resetpassword -email EMAIL - reset a user's password")
	fmt.Println("  syncenrollments -subject ID | -student ID - re-run grade level enrollment matching")
	fmt.Println("  migrate COMMAND [ARGS] - run a migration command (up, down, status, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRoles := addUserCmd.String("roles", user.RoleAdmin, "Comma-separated roles: admin, teacher, student.")
	addUserGrade := addUserCmd.String("grade", "", "The student's grade level.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The new password will be prompted next.")

	syncCmd := flag.NewFlagSet("syncenrollments", flag.ExitOnError)
	syncSubject := syncCmd.String("subject", "", "ID of the subject to resync.")
	syncStudent := syncCmd.String("student", "", "ID of the student to resync.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, string(pwd), *addUserRoles, *addUserGrade)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, string(pwd))
	case "syncenrollments":
		if err := syncCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *syncSubject == "" && *syncStudent == "" {
			syncCmd.Usage()
			return errHelp
		}
		return cli.syncEnrollments(*syncSubject, *syncStudent)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() ([]byte, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	return pwd, err
}
