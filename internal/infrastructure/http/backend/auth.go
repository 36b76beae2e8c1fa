package backend

import (
	"context"

	"github.com/sardegnaricette/v2/internal/domain/user"
)

// Credentials is what the auth endpoints hand back on success: the user
// record plus both tokens.
type Credentials struct {
	User         user.User
	AccessToken  string
	RefreshToken string
}

// authResponse mirrors the backend's login/register payload.
type authResponse struct {
	User   user.User `json:"user"`
	Tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
	Message string `json:"message"`
}

func (r authResponse) credentials() *Credentials {
	return &Credentials{
		User:         r.User,
		AccessToken:  r.Tokens.Access,
		RefreshToken: r.Tokens.Refresh,
	}
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp authResponse
	if err := c.postJSON(ctx, "/auth/login/", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.credentials(), nil
}

// Register creates an account. The backend validates the fields and the
// password confirmation; validation failures come back as a KindValidation
// error.
func (c *Client) Register(ctx context.Context, email, name, password, confirm string) (*Credentials, error) {
	body := map[string]string{
		"email":     email,
		"name":      name,
		"password":  password,
		"password2": confirm,
	}
	var resp authResponse
	if err := c.postJSON(ctx, "/auth/register/", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.credentials(), nil
}

// Me returns the user record for the current session's token. Used to
// validate a restored session.
func (c *Client) Me(ctx context.Context, tokens TokenSource) (*user.User, error) {
	var u user.User
	if err := c.getJSON(ctx, "/auth/me/", nil, tokens, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
