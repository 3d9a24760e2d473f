// Package services assembles tenantrag's components and exposes the
// retrieval API used by the HTTP surface.
//
// Build wires a tenant store, embedding gateway, vector index, indexer and
// retrieval engine from configuration. New accepts pre-built components,
// which tests use with in-memory backends.
package services
