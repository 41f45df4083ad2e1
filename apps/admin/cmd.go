package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/teacher"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf     *core.Config
	logger   core.Logger
	db       *sql.DB // nil with the in-memory engine
	teachers *teacher.Service
	ledger   *ledger.Service
	mailer   core.EmailService
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose command (up, down, status, redo...)")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-admin] - create or update a teacher")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset a teacher's password")
	fmt.Fprintln(cli.out, "  reconcile [-month YYYY-MM] [-username USERNAME] - rebuild cached monthly hours from the ledger")
	fmt.Fprintln(cli.out, "  statements -month YYYY-MM - email the monthly hours statement to every active teacher")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The teacher's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The teacher's email.")
	addUserName := addUserCmd.String("name", "", "The teacher's first name (defaults to the username).")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The teacher's username or email. The password will be prompted next.")

	reconcileCmd := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	reconcileMonth := reconcileCmd.String("month", "", "The month to aggregate, YYYY-MM (defaults to the current month).")
	reconcileUname := reconcileCmd.String("username", "", "Only reconcile this teacher.")

	statementsCmd := flag.NewFlagSet("statements", flag.ContinueOnError)
	statementsMonth := statementsCmd.String("month", "", "The month of the statements, YYYY-MM.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, reconcileCmd, statementsCmd} {
		fs.SetOutput(cli.out)
	}

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
		if *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserUname, *addUserEmail, *addUserName, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "reconcile":
		if err := reconcileCmd.Parse(args[2:]); err != nil {
			return err
		}
		var month core.Month
		if *reconcileMonth != "" {
			m, err := core.ParseMonth(*reconcileMonth)
			if err != nil {
				return err
			}
			month = m
		}
		return cli.reconcile(month, *reconcileUname)

	case "statements":
		if err := statementsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *statementsMonth == "" {
			statementsCmd.Usage()
			return errHelp
		}
		month, err := core.ParseMonth(*statementsMonth)
		if err != nil {
			return err
		}
		return cli.sendStatements(month)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
