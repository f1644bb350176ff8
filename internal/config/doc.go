// Package config loads obsidian-rag settings.
//
// Precedence, lowest first: built-in defaults, a YAML (.yaml/.yml) or TOML
// (.toml) file, then environment variables prefixed OBSIDIAN_RAG_. A .env file
// in the working directory is read into the environment before overrides are
// applied; variables already set in the process win.
//
// Environment overrides:
//
//	OBSIDIAN_RAG_VAULT          vault root (default ./second_brain)
//	OBSIDIAN_RAG_PATTERNS       comma-separated file globs (default *.md)
//	OBSIDIAN_RAG_PRUNE_MISSING  true/false
//	OBSIDIAN_RAG_PROVIDER       ollama, openai or local
//	OBSIDIAN_RAG_EMBEDDING_URL  embedding service base URL
//	OBSIDIAN_RAG_MODEL          embedding model (default llama3.2:3b)
//	OBSIDIAN_RAG_API_KEY        provider API key
//	OBSIDIAN_RAG_DIMENSION      expected embedding dimension
//	OBSIDIAN_RAG_BACKEND        sqlite or postgres
//	OBSIDIAN_RAG_DB_PATH        sqlite file
//	OBSIDIAN_RAG_DSN            postgres connection string
//	OBSIDIAN_RAG_SEARCH_LIMIT   default result count (default 5)
//	OBSIDIAN_RAG_DEBOUNCE_MS    watcher quiet period
//	OBSIDIAN_RAG_LOG_LEVEL      debug, info, warn or error
//	OBSIDIAN_RAG_LOG_FORMAT     text or json
//
// Example YAML:
//
//	vault:
//	  root: /home/me/notes
//	  patterns: ["*.md", "*.pdf"]
//	embedding:
//	  provider: ollama
//	  model: nomic-embed-text
//	storage:
//	  backend: sqlite
//	  path: notes.db
package config
