package constants

import "time"

// Worker constants
const (
	// WorkerPoolSize is the default number of tasks a worker pool runs at once
	WorkerPoolSize = 4

	// ResultChannelBuffer is the buffer size for task result channels
	ResultChannelBuffer = 1
)

// HTTP constants
const (
	// DefaultProxyTimeout bounds a single request to the local proxy API
	DefaultProxyTimeout = 60 * time.Second

	// ServerShutdownTimeout bounds graceful shutdown of the proxy API server
	ServerShutdownTimeout = 30 * time.Second
)
