package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/esdes/campus/core/entity"
	"github.com/esdes/campus/core/session"
	"github.com/esdes/campus/services/gateway"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	confirmFunc      = confirm           // mockable

	errHelp = errors.New("help provided")
)

// authenticator is the part of the remote API dealing with credentials.
type authenticator interface {
	Login(ctx context.Context, username, password string) (gateway.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) (gateway.Message, error)
	ResetPassword(ctx context.Context, email, pin, newPassword string) (gateway.Message, error)
}

type commandLine struct {
	sess     *session.Session
	auth     authenticator
	gateway  func(token string) entity.Gateway
	pageSize int
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME                        - open a session (the password is prompted)")
	fmt.Fprintln(cli.out, "  logout                                          - close the session")
	fmt.Fprintln(cli.out, "  list -entity NAME [-search S] [-filter F=V]... [-from DATE] [-to DATE] [-page N]")
	fmt.Fprintln(cli.out, "  create -entity NAME FIELD=VALUE...              - create a record")
	fmt.Fprintln(cli.out, "  update -entity NAME -id ID FIELD=VALUE...       - edit a record")
	fmt.Fprintln(cli.out, "  delete -entity NAME -id ID [-yes]               - delete a record")
	fmt.Fprintln(cli.out, "  export -entity NAME -o FILE [list filters]      - write the filtered list to an Excel file")
	fmt.Fprintln(cli.out, "  stats [-area admin|comptable]                   - show a dashboard")
	fmt.Fprintln(cli.out, "  forgotpassword -email EMAIL                     - receive a reset pin by email")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL -pin PIN             - set a new password (prompted)")
	fmt.Fprintf(cli.out, "Entities: %s\n", strings.Join(entity.Names(), ", "))
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	switch args[1] {
	case "login":
		cmd := cli.newFlagSet("login")
		uname := cmd.String("username", "", "The username. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *uname == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Mot de passe:")
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *uname, pwd)

	case "logout":
		return cli.logout(ctx)

	case "list", "export":
		cmd := cli.newFlagSet(args[1])
		name := cmd.String("entity", "", "The entity to list.")
		lf := newListFlags(cmd)
		output := cmd.String("o", "", "The Excel file to write (export only).")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *name == "" || (args[1] == "export" && *output == "") {
			cmd.Usage()
			return errHelp
		}
		if args[1] == "export" {
			return cli.export(ctx, *name, lf, *output)
		}
		return cli.list(ctx, *name, lf)

	case "create", "update":
		cmd := cli.newFlagSet(args[1])
		name := cmd.String("entity", "", "The entity of the record.")
		id := cmd.String("id", "", "The id of the record to edit (update only).")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *name == "" || (args[1] == "update" && *id == "") {
			cmd.Usage()
			return errHelp
		}
		values, err := parseAssignments(cmd.Args())
		if err != nil {
			return err
		}
		return cli.save(ctx, *name, *id, values)

	case "delete":
		cmd := cli.newFlagSet("delete")
		name := cmd.String("entity", "", "The entity of the record.")
		id := cmd.String("id", "", "The id of the record to delete.")
		yes := cmd.Bool("yes", false, "Do not ask for confirmation.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *name == "" || *id == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.delete(ctx, *name, *id, *yes)

	case "stats":
		cmd := cli.newFlagSet("stats")
		area := cmd.String("area", "", "The dashboard to show: admin or comptable (defaults to the session's).")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.stats(ctx, *area)

	case "forgotpassword":
		cmd := cli.newFlagSet("forgotpassword")
		email := cmd.String("email", "", "The email of the account.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.forgotPassword(ctx, *email)

	case "resetpassword":
		cmd := cli.newFlagSet("resetpassword")
		email := cmd.String("email", "", "The email of the account.")
		pin := cmd.String("pin", "", "The pin received by email. The new password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" || *pin == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Nouveau mot de passe:")
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *email, *pin, pwd)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func confirm(prompt string) (bool, error) {
	fmt.Printf("%s [o/N] ", prompt)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "o", "oui", "y", "yes":
		return true, nil
	}
	return false, nil
}
