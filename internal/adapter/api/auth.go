package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// TokenResponse is the /auth/token success payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// User is the identity record behind /auth/me.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// UserUpdate carries the mutable profile fields.
type UserUpdate struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Login exchanges credentials for a bearer token and stores it on the
// client.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var token TokenResponse
	err := c.doBody(ctx, http.MethodPost, "/auth/token",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &token)
	if err != nil {
		return nil, err
	}
	c.SetToken(token.AccessToken)
	return &token, nil
}

// Register creates a new account. It does not log in.
func (c *Client) Register(ctx context.Context, username, email, password string) (*User, error) {
	in := map[string]string{"username": username, "email": email, "password": password}
	var user User
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Me fetches the authenticated identity.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateMe updates the authenticated profile.
func (c *Client) UpdateMe(ctx context.Context, update UserUpdate) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodPut, "/auth/me", update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword replaces the account password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	in := map[string]string{"current_password": current, "new_password": next}
	return c.doJSON(ctx, http.MethodPut, "/auth/password", in, nil)
}

// DeleteAccount removes the account and clears the stored credential.
func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/auth/me", nil, nil); err != nil {
		return err
	}
	c.ClearToken()
	return nil
}
