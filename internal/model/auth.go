package model

// Credentials is the body of POST /auth/login
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /auth/signup
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Company  string `json:"company,omitempty"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// SignupResponse is returned by a successful signup. It carries no token;
// the caller has to log in separately.
type SignupResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// MeResponse is returned by GET /auth/me
type MeResponse struct {
	User User `json:"user"`
}

// RefreshResponse is returned by POST /auth/refresh. Some deployments name
// the field access_token.
type RefreshResponse struct {
	Token       string `json:"token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// BearerToken returns whichever token field the server filled in
func (r RefreshResponse) BearerToken() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

// ErrorResponse is the body of a failed API call
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Text returns the server-provided message
func (e ErrorResponse) Text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}
