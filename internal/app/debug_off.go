//go:build !debug

package app

import "github.com/justyntemme/dropzone/internal/debug"

// debugEnabled is false when not built with -tags debug
const debugEnabled = debug.Enabled
