// Package agent runs the per-session side of the assistant.
//
// # Overview
//
// Each session gets one Runtime.Run call. It captures the capability schema
// once, so a session sees a stable tool set even if the registry is reloaded
// while it is open, and then serves the client's frames in arrival order.
//
// # Frames
//
// Frames are JSON objects with a "type" field:
//
//	→ {"type":"tool_call","id":"c1","name":"get_weather","arguments":{"location":"Pune"}}
//	← {"type":"tool_result","id":"c1","name":"get_weather","result":{"status":"success",...}}
//	→ {"type":"list_tools"}
//	← {"type":"tools","tools":[...]}
//	→ {"type":"ping"}
//	← {"type":"pong"}
//
// On start the runtime sends {"type":"ready","session_id":...,"tools":[...]}.
// Unknown or malformed frames get an {"type":"error"} reply and the session
// continues.
//
// # Retries
//
// A tool_call whose id was already answered in the same session within the
// dedupe window is answered from cache without invoking the capability again.
// Clients retry after a reconnect, and calendar writes must not happen twice.
package agent
