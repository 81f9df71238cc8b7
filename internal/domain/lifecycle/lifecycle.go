package lifecycle

import "time"

// DefaultTimeout bounds graceful shutdown of servers and background work.
const DefaultTimeout = 10 * time.Second
