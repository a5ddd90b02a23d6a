// Package mcp implements a Model Context Protocol (MCP) server.
//
// The MCP server exposes the knowledge base to MCP clients (Claude Desktop,
// Cursor, Genkit CLI and others), so an external assistant can search notes,
// ask grounded questions and save new notes through a standardized protocol.
// It runs over stdio: `kennis mcp` is the command clients launch.
//
// # Supported Tools
//
//   - search_notes: relation-aware semantic search over the team's notes.
//     Superseded notes are filtered out; related notes are pulled in through
//     typed relations.
//   - ask_knowledge_base: a cited Dutch answer generated from matching notes,
//     returned together with the numbered source block.
//   - save_note: store a note, enriched with a summary, suggested tags and
//     extracted entities when an enricher is configured.
//
// # Tool Handler Pattern
//
// Tool handlers follow Go's net/http.Handler pattern:
//
//  1. Define an input schema struct with JSON tags and descriptions
//  2. Infer the JSON schema using jsonschema-go
//  3. Create mcp.Tool with name, description, and schema
//  4. Register the handler method with mcp.AddTool
//  5. Build responses directly, no conversion layer
//
// # Error Handling
//
// The server distinguishes two kinds of errors:
//
//   - System errors (store or provider failures): returned as Go errors,
//     nothing the client model can fix by rephrasing.
//   - Input errors (empty query, unknown status): returned as a text result
//     with IsError=true, so the client model can read the message and retry
//     with corrected arguments.
//
// # Thread Safety
//
// The server is safe for concurrent use. Transport and message handling are
// managed by the MCP SDK.
package mcp
