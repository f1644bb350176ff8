// Package cli implements the obsidian-rag command line.
//
//	obsidian-rag index [--rebuild] [--json]
//	obsidian-rag search [-n limit] [--json] <query...>
//	obsidian-rag status [--json]
//	obsidian-rag reset --yes
//	obsidian-rag serve [--watch]
//	obsidian-rag watch
//	obsidian-rag version
//
// Global flags --config, --vault, --db and --provider override the loaded
// configuration. Every command that touches the index opens one rag.Service
// for its lifetime and closes it on return. Logs go to stderr.
package cli
