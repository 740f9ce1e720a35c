// Package logging wires up structured per-peer logging with logrus.
package logging

import (
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewRunID returns a short run identifier to correlate log lines and the
// -meta sidecar across every peer in one construction or overlap run.
func NewRunID() string {
	return uuid.NewString()
}

// New returns a logger preloaded with the fields every line from this
// peer should carry: which run, which peer, and its role.
func New(runID string, peerID int, role string) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log.WithFields(logrus.Fields{
		"run_id":  runID,
		"peer_id": peerID,
		"role":    role,
	})
}
