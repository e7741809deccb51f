package myplayer

import (
	"log"

	"github.com/soffio/myplayer/internal/engine"
)

// Logger is re-exported from internal/engine so callers configuring
// Options.Logger don't need to import an internal package.
type Logger = engine.Logger

var pkgLogger Logger = log.Default()

// SetLogger replaces the package-wide default logger used whenever a
// Player is constructed without an explicit Options.Logger.
func SetLogger(logger Logger) {
	pkgLogger = logger
}
