// Package webapp provides the embedded static shell for the browser client.
package webapp

import "embed"

//go:embed index.html login.html
var Assets embed.FS
