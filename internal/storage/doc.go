// Package storage persists the monitor's small named JSON documents
// (ranking snapshot, subscriber set).
//
// It currently supports:
//   - "file": one document per file, atomic replace on save
//   - "sqlite": single-table database (optional build tag)
package storage
