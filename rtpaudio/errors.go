package rtpaudio

import "errors"

// ErrQueueClosed is logged by AddPacket/GetQueuedPacket after Cleanup; it
// never leaves either call as a Go error, matching their no-error contract.
var ErrQueueClosed = errors.New("rtpaudio: queue is closed")
