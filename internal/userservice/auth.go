package userservice

import (
	"context"
	"errors"
	"net/http"

	"github.com/sushihentaime/blogclient/internal/common"
)

type credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func NewAuthClient(t *common.Transport, m *Manager) *AuthClient {
	return &AuthClient{t: t, m: m}
}

// Login exchanges credentials for a token and makes the returned session
// current.
func (c *AuthClient) Login(ctx context.Context, email, password string) (Session, error) {
	v := common.NewValidator()
	validateEmail(v, email)
	validatePassword(v, password)
	if !v.Valid() {
		return Session{}, v.ValidationError()
	}

	var resp authResponse
	err := c.t.Do(ctx, common.Request{
		Method: http.MethodPost,
		Path:   "/login",
		JSON:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return Session{}, err
	}

	if resp.Token == "" || resp.User == nil || resp.User.ID == "" {
		return Session{}, &common.APIError{
			Kind:    common.KindServer,
			Status:  http.StatusOK,
			Message: common.GenericFailureMessage,
			Err:     errors.New("login response is missing token or user"),
		}
	}

	if err := c.m.Login(ctx, resp.Token, *resp.User); err != nil {
		return Session{}, err
	}

	return c.m.Current(), nil
}

// Register creates an account. When the server answers with a token the new
// session is made current as well.
func (c *AuthClient) Register(ctx context.Context, name, email, password string) (User, error) {
	v := common.NewValidator()
	validateName(v, name)
	validateEmail(v, email)
	validatePassword(v, password)
	if !v.Valid() {
		return User{}, v.ValidationError()
	}

	var resp authResponse
	err := c.t.Do(ctx, common.Request{
		Method: http.MethodPost,
		Path:   "/register",
		JSON:   credentials{Name: name, Email: email, Password: password},
	}, &resp)
	if err != nil {
		return User{}, err
	}

	if resp.User == nil {
		return User{Name: name, Email: email}, nil
	}

	if resp.Token != "" {
		if err := c.m.Login(ctx, resp.Token, *resp.User); err != nil {
			return User{}, err
		}
	}

	return *resp.User, nil
}
