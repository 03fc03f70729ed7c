// Package poll runs the long-lived remote commands that feed a cluster model.
//
// Each host has two loops, one per stream Kind. A loop executes its command
// over a pooled SSH connection, pushes the output through the kind's
// decoder and hands every decoded frame to a Handler on the loop goroutine.
// When the command ends the loop sleeps RetryDelay and starts it again,
// forever, until Stop is called or its context is cancelled.
package poll
