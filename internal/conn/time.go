package conn

import "time"

// unixNow returns the current Unix-second clock, used as the default for
// the Now variable so every expiration check in this package agrees with
// internal/cache's notion of "now."
func unixNow() int64 { return time.Now().Unix() }
