package embed

import (
	_ "embed"
)

// ResizeMessageType is the postMessage type the parent page listens for.
const ResizeMessageType = "traverum-resize"

//go:embed resize.js
var resizeScript []byte

// Script returns the resize script served at /embed.js.
func Script() []byte { return resizeScript }
