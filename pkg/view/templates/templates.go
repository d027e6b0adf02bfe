package templates

import "embed"

//go:embed layout partials pages
var Templates embed.FS
