package dedupe

import "errors"

var errNoEmbedder = errors.New("no embedding client configured")
