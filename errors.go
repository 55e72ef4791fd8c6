package goSession

import (
	"errors"

	"github.com/gymkit/goSession/internal/api"
	"github.com/gymkit/goSession/jwt"
)

// ErrDecode reports a structurally undecodable token. Defined in the jwt
// package; re-exported here so callers can match the whole taxonomy from one
// import.
var ErrDecode = jwt.ErrDecode

var (
	// ErrNoRefreshToken reports a refresh attempt with no refresh token in
	// the store. The session cannot recover and must be re-established.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshFailed reports that the refresh endpoint rejected the
	// stored refresh token. Stored credentials have been cleared.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrLoginFailed reports that the login endpoint rejected the supplied
	// credentials. Unwrap to *APIError for the status and server message.
	ErrLoginFailed = errors.New("login failed")
	// ErrSessionExpired reports a token request against a controller whose
	// session ended or cannot be recovered.
	ErrSessionExpired = errors.New("session expired")
	// ErrControllerClosed reports an operation on a closed controller.
	ErrControllerClosed = errors.New("controller closed")
	// ErrBuilderUsed reports a second Build call on the same builder.
	ErrBuilderUsed = errors.New("builder already used")
)

// APIError is a non-2xx response from a backend authentication endpoint.
// It carries the HTTP status code and the server-provided message.
type APIError = api.Error
