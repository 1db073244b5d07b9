package scenario

import "errors"

var (
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrNotFinalized     = errors.New("scenario store not finalized")
	ErrUnknownLineKind  = errors.New("unknown line kind")
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrAssetVersion     = errors.New("unsupported asset version")
)
