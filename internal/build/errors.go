package build

import "errors"

// ErrPostsFailed is returned by Run when at least one post could not be
// built. The aggregate phase still ran.
var ErrPostsFailed = errors.New("postbuilder: posts failed")
