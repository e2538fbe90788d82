package web

import "embed"

// FS contains the embedded page templates and static assets.
//
//go:embed *.tmpl.html css/* js/*
var FS embed.FS
