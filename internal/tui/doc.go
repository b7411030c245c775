// Package tui implements the interactive watch screen.
//
// WatchModel renders the tracked set as a table in tracked order. Keys whose
// full record has not arrived yet show as placeholder rows, and a banner
// reports load progress. The model never fetches anything itself: it drives
// the engine (tracked set, focus, reloads, forced refresh) and re-reads the
// engine snapshot whenever an engine event arrives through an EventBridge.
package tui
