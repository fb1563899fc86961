// Package watcher converts files dropped into a watched directory.
//
// The watcher observes create and write events with fsnotify, waits for
// the file to settle, and hands it to the conversion coordinator. Results
// land in a converted/ subdirectory of the watched directory.
package watcher
