package patch

import "errors"

var (
	ErrConfigNotFound      = errors.New("no patch.json found")
	ErrConfigDeprecated    = errors.New("tagList property has been deprecated")
	ErrUnsupportedRegistry = errors.New("only ghcr.io is supported at this time")
	ErrDeleteFailed        = errors.New("failed to delete untagged image")
)
