package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/eduva/eduva/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type userService interface {
	ResetPassword(ctx context.Context, email, password string) error
	Audit(ctx context.Context, repair bool) (user.AuditReport, error)
}

type commandLine struct {
	db     *sqlx.DB
	usrSvc userService
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run database migrations (up, down, status, version, ...)")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset an account's password")
	_, _ = fmt.Fprintln(cli.out, "  audit [-repair] - report legacy and drifted credentials")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")

	auditCmd := flag.NewFlagSet("audit", flag.ContinueOnError)
	auditCmd.SetOutput(cli.out)
	auditRepair := auditCmd.Bool("repair", false, "Sync drifted role profiles with their account.")

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		_, _ = fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		_, _ = fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, string(pwd))
	case "audit":
		if err := auditCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.audit(ctx, *auditRepair)
	default:
		cli.printUsage()
		return errHelp
	}
}
