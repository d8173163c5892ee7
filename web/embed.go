// Package web provides the embedded console page template and its stylesheet.
package web

import "embed"

// TemplatesFS embeds the HTML templates from the templates directory.
//
//go:embed templates
var TemplatesFS embed.FS

// StaticFS embeds the CSS served under /static.
//
//go:embed static
var StaticFS embed.FS
