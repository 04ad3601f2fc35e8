// Package tools defines the tool contract and the catalog the MCP dispatcher
// serves from.
//
// # Catalog
//
// A [Catalog] is built once from a fixed list of tools and never changes.
// At construction it precomputes two [ToolSet] values: every tool, and every
// tool except those tagged [TagFileSystem]. [Catalog.Resolve] hands out one
// of them per request, so concurrent requests with different capability
// flags never observe each other.
//
// # Schemas
//
// Input schemas are reflected from argument structs with [SchemaFor] and
// compiled once. [ToolSet.Call] validates arguments before invoking the tool;
// mismatches are reported as [ErrInvalidArguments].
package tools
