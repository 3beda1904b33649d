package embedding

import "errors"

var ErrCountMismatch = errors.New("embedding count does not match input count")
