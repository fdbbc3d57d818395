package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/session"
)

var (
	errNoRole      = errors.New("ce compte n'a accès à aucun espace")
	errNotLoggedIn = errors.New("non connecté: lancez `login` d'abord")
)

func (cli *commandLine) login(ctx context.Context, uname, pwd string) error {
	pair, err := cli.auth.Login(ctx, core.CleanString(uname), pwd)
	if err != nil {
		return err
	}
	claims, err := session.ParseClaims(pair.Access)
	if err != nil {
		return errors.Wrap(err, "reading access token")
	}
	if claims.Role() == session.RoleNone {
		return errNoRole
	}
	if err := cli.sess.Init(ctx, pair.Access, pair.Refresh); err != nil {
		return errors.Wrap(err, "initializing session")
	}
	fmt.Fprintf(cli.out, "Connecté: %s (%s)\n", claims.Username, claims.Role())
	return nil
}

func (cli *commandLine) logout(ctx context.Context) error {
	if err := cli.sess.Clear(ctx); err != nil {
		return errors.Wrap(err, "clearing session")
	}
	fmt.Fprintln(cli.out, "Déconnecté.")
	return nil
}

func (cli *commandLine) forgotPassword(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	if msg := core.ValidateValue(email, "email"); msg != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "email", Error: msg})
	}
	msg, err := cli.auth.ForgotPassword(ctx, email)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, msg)
	return nil
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pin, pwd string) error {
	msg, err := cli.auth.ResetPassword(ctx, core.CleanString(email, true /* lower */), core.CleanString(pin), pwd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, msg)
	return nil
}
