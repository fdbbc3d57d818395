package gateway

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

var ErrNoToken = errors.New("the API answered without an access token")

type (
	TokenPair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}

	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	forgotPasswordRequest struct {
		Email string `json:"email"`
	}

	resetPasswordRequest struct {
		Email       string `json:"email"`
		ResetPin    string `json:"reset_pin"`
		NewPassword string `json:"new_password"`
	}

	// Message is the usual answer of the password endpoints.
	Message struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
)

func (m Message) String() string {
	if m.Message != "" {
		return m.Message
	}
	return m.Detail
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (TokenPair, error) {
	endpoint, err := c.endpoint("token")
	if err != nil {
		return TokenPair{}, err
	}
	var pair TokenPair
	if err := c.send(ctx, http.MethodPost, endpoint, loginRequest{username, password}, &pair); err != nil {
		return TokenPair{}, err
	}
	if pair.Access == "" {
		return TokenPair{}, ErrNoToken
	}
	return pair, nil
}

// ForgotPassword asks the API to send a reset pin to email.
func (c *Client) ForgotPassword(ctx context.Context, email string) (Message, error) {
	endpoint, err := c.endpoint("forgot-password")
	if err != nil {
		return Message{}, err
	}
	var msg Message
	err = c.send(ctx, http.MethodPost, endpoint, forgotPasswordRequest{email}, &msg)
	return msg, err
}

// ResetPassword sets a new password using the pin received by email.
func (c *Client) ResetPassword(ctx context.Context, email, pin, newPassword string) (Message, error) {
	endpoint, err := c.endpoint("reset-password")
	if err != nil {
		return Message{}, err
	}
	var msg Message
	err = c.send(ctx, http.MethodPost, endpoint, resetPasswordRequest{email, pin, newPassword}, &msg)
	return msg, err
}
