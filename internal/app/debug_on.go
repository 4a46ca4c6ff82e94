//go:build debug

package app

// debugEnabled is true when built with -tags debug
const debugEnabled = true
