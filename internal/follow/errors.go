package follow

import "codeberg.org/mutker/mcslog/internal/errors"

// ErrNotConnected is returned by an Extrapolator with no engine behind it.
const ErrNotConnected = errors.ErrorCode("follow_tcs_not_connected")
