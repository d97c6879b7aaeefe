// Package mcp implements the Model Context Protocol server for external tool access.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for LLM tool integration. This
// package exposes the gateway's capabilities (weather, time, date, calendar)
// to any MCP client, using the same registry and dispatcher the voice
// sessions use.
//
// # Protocol
//
// JSON-RPC 2.0 over the Streamable HTTP transport:
//
//   - POST /mcp - initialize, ping, tools/list, tools/call
//   - DELETE /mcp - end the session named by Mcp-Session-Id
//
// Server-initiated SSE streams are not supported.
//
// # Authentication
//
// Every request carries the gateway's bearer token:
//
//	Authorization: Bearer <token>
//
// Sessions belong to the user that initialized them.
//
// # Tool Execution
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "get_date_info",
//	    "arguments": {"query_type": "days_from_now", "days_offset": 5}
//	  },
//	  "id": 2
//	}
//
// The capability Result is returned both as JSON text content and as
// structuredContent. Failed calls set isError; they are never JSON-RPC errors.
package mcp
