// Package watcher observes a drop directory for document files and emits
// debounced batches of file events, so `docsift watch` can ingest documents
// as they land.
//
// DropWatcher uses fsnotify when the platform supports it and falls back to
// periodic polling otherwise. Rapid events for the same path (a download
// writing in chunks, an editor's save dance) are coalesced by the Debouncer
// before they reach the consumer, so one landed file produces one event.
package watcher
