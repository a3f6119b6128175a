package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/slopeside/core/transition"
	"github.com/trezcool/slopeside/core/user"
	"github.com/trezcool/slopeside/services/scheduler"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("no SQL database configured (memory engine)")
)

type commandLine struct {
	db          *sql.DB // nil with the memory engine
	usrRepo     user.Repository
	transitions *transition.Service
	jobs        *scheduler.Scheduler
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]                      - run a goose migration command (up, down, status..)")
	fmt.Println("  adduser -email EMAIL [-name NAME] [-admin]  - add or update a user (the password is prompted)")
	fmt.Println("  resetpassword -username EMAIL               - reset user's password")
	fmt.Println("  transitionrole -email EMAIL -role ROLE      - switch the marketplace role of a user")
	fmt.Println("  runjob -name JOB                            - run a scheduled job once")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's name (defaults to the email).")
	addUserAdmin := addUserCmd.Bool("admin", false, "Give the user every staff role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's email. The password will be prompted next.")

	transitionRoleCmd := flag.NewFlagSet("transitionrole", flag.ExitOnError)
	transitionRoleEmail := transitionRoleCmd.String("email", "", "The user's email.")
	transitionRoleRole := transitionRoleCmd.String("role", "", "The new marketplace role: client, instructor or school_admin.")

	runJobCmd := flag.NewFlagSet("runjob", flag.ExitOnError)
	runJobName := runJobCmd.String("name", "", fmt.Sprintf("The job to run, one of: %v.", cli.jobs.Names()))

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

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
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "transitionrole":
		if err := transitionRoleCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *transitionRoleEmail == "" || *transitionRoleRole == "" {
			transitionRoleCmd.Usage()
			return errHelp
		}
		return cli.transitionRole(*transitionRoleEmail, *transitionRoleRole)

	case "runjob":
		if err := runJobCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *runJobName == "" {
			runJobCmd.Usage()
			return errHelp
		}
		return cli.runJob(*runJobName)

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
