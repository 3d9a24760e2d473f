// Package vectorstore holds the shared vector index every tenant's chunks
// live in.
//
// All tenants share one collection. Isolation is enforced by payload
// filtering: every Search, Scroll and Delete takes a Filter whose TenantID is
// mandatory, and Validate fails closed with ErrMissingTenant when it is empty.
// Upsert rejects points whose payload carries no tenant_id.
//
// Backends:
//   - QdrantIndex: Qdrant over gRPC (default)
//   - PgvectorIndex: PostgreSQL with the pgvector extension
//   - ChromemIndex: embedded chromem-go; approximate search only
//   - MemoryIndex: exact in-process index for tests and local runs
package vectorstore
