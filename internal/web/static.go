package web

import (
	"embed"
)

// staticFiles holds the embedded HTML, CSS and JS of the control page.
//
//go:embed static/*
var staticFiles embed.FS
