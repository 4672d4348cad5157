// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package baas

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/savika/savika/internal/credential"
	"github.com/savika/savika/internal/gateway"
)

type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	Token string `json:"token"`
}

type updateUserRequest struct {
	Password string `json:"password"`
}

type userMetadata struct {
	FullName string `json:"full_name,omitempty"`
}

type userPayload struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
}

func (u userPayload) toUser() gateway.User {
	email := credential.NormalizeEmail(u.Email)
	name := strings.TrimSpace(u.UserMetadata.FullName)
	if name == "" {
		name = credential.LocalPart(email)
	}
	return gateway.User{ID: u.ID, DisplayName: name, Email: email}
}

// tokenResponse is returned by the token and verify endpoints, and by signup
// when the provider issues a session immediately.
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *userPayload `json:"user"`
}

// signUpResponse is either a tokenResponse or a bare user object when email
// confirmation is pending.
type signUpResponse struct {
	tokenResponse
	userPayload
}

func (r *signUpResponse) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.tokenResponse); err != nil {
		return err
	}
	return json.Unmarshal(data, &r.userPayload)
}

func (t tokenResponse) session(now time.Time) *Session {
	s := &Session{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}
	if t.User != nil {
		s.User = t.User.toUser()
	}
	return s
}

// errorResponse covers both error shapes the provider emits.
type errorResponse struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// parseError turns a non-2xx response body into an AuthError.
func parseError(status int, body []byte) *gateway.AuthError {
	authErr := &gateway.AuthError{Status: status, Code: gateway.CodeUnexpected, Message: http.StatusText(status)}

	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" {
			authErr.Message = text
		}
		return authErr
	}

	// Older providers put the error code string in "error" and a numeric
	// status in "code".
	var codeString string
	_ = json.Unmarshal(resp.Code, &codeString)
	switch {
	case resp.ErrorCode != "":
		authErr.Code = resp.ErrorCode
	case codeString != "":
		authErr.Code = codeString
	case resp.Error != "":
		authErr.Code = resp.Error
	}
	for _, msg := range []string{resp.Msg, resp.Message, resp.ErrorDescription} {
		if msg != "" {
			authErr.Message = msg
			break
		}
	}
	if authErr.Code == "invalid_grant" {
		authErr.Code = gateway.CodeInvalidCredentials
	}
	return authErr
}
