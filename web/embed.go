// Package web holds browser-side assets served by notifyd.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var staticFS embed.FS

// ServiceWorkerPath is the file name of the push service worker within FS.
const ServiceWorkerPath = "sw.js"

// FS returns the embedded static assets rooted at the static directory.
func FS() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}

// ServiceWorker returns the script browsers register to receive push deliveries.
func ServiceWorker() ([]byte, error) {
	return staticFS.ReadFile("static/" + ServiceWorkerPath)
}
