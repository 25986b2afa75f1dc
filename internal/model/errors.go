package model

import "github.com/rotisserie/eris"

// ErrNotFound means the session or task id is unknown.
var ErrNotFound = eris.New("session not found")
