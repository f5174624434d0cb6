// Package assets embeds the host page client and the anywidget component
// frontend.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed client/*
var clientFS embed.FS

//go:embed frontend/*
var frontendFS embed.FS

// Client asset names, served under /assets/.
const (
	ClientJS  = "widgetbridge-client.js"
	ClientCSS = "widgetbridge-client.css"
)

// ClientFS returns the embedded host page client files
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// FrontendFS returns the anywidget component frontend. Its index.html is the
// iframe document; it can be served in-process or by `widgetbridge frontend`.
func FrontendFS() fs.FS {
	sub, err := fs.Sub(frontendFS, "frontend")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetClientJS returns the host page script
func GetClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/" + ClientJS)
}

// GetClientCSS returns the host page stylesheet
func GetClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/" + ClientCSS)
}
