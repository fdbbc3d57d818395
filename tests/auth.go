package testutil

import (
	"context"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/services/gateway"
)

const (
	Password = "password"
	ResetPin = "1234"
)

// FakeAuth issues tokens the way the API does: "admin" is a superuser, "compta" an accountant,
// anybody else has no role. Every password but Password is refused.
type FakeAuth struct{}

// AccessToken signs claims for username with a lifetime of ttl.
func AccessToken(username string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  1,
		"username": username,
		"email":    username + "@esdes.mg",
		"exp":      time.Now().Add(ttl).Unix(),
	}
	switch username {
	case "admin":
		claims["is_superuser"] = true
	case "compta":
		claims["is_comptable"] = true
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
}

func (FakeAuth) Login(_ context.Context, username, pwd string) (gateway.TokenPair, error) {
	if pwd != Password {
		return gateway.TokenPair{}, core.NewGatewayError(http.StatusUnauthorized, map[string]interface{}{
			"detail": "Identifiants invalides",
		})
	}
	access, err := AccessToken(username, time.Hour)
	if err != nil {
		return gateway.TokenPair{}, err
	}
	return gateway.TokenPair{Access: access, Refresh: "refresh-" + username}, nil
}

func (FakeAuth) ForgotPassword(context.Context, string) (gateway.Message, error) {
	return gateway.Message{Message: "Un code a été envoyé."}, nil
}

func (FakeAuth) ResetPassword(_ context.Context, _, pin, _ string) (gateway.Message, error) {
	if pin != ResetPin {
		return gateway.Message{}, core.NewGatewayError(http.StatusBadRequest, map[string]interface{}{
			"reset_pin": []interface{}{"Code invalide"},
		})
	}
	return gateway.Message{Detail: "Mot de passe modifié."}, nil
}
