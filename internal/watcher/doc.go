// Package watcher keeps the index current while the vault is edited.
//
// It watches the vault root and every non-hidden directory below it with
// fsnotify. Creates, writes, removes and renames of files matching the
// configured patterns (and of directories) restart a debounce timer; when the
// timer fires one incremental pass runs through the shared rag.Service. Because
// passes are incremental, the pass only re-embeds what actually changed.
// Hidden paths such as .obsidian/ and .git/ are ignored.
package watcher
