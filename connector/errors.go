package connector

import "github.com/ceyewan/beacon/xerrors"

var (
	ErrConfig        = xerrors.New("connector: invalid config")
	ErrConnection    = xerrors.New("connector: connection failed")
	ErrAlreadyClosed = xerrors.New("connector: already closed")
)
