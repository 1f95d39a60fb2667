/*
Package http exposes a session.Manager over a JSON API.

	POST   /sessions                 create a session, returns the opening turn
	GET    /sessions                 list session ids
	GET    /sessions/{id}            current state
	DELETE /sessions/{id}            drop state and history
	POST   /sessions/{id}/turns      submit {"text": "..."}
	POST   /sessions/{id}/restart    walk the graph again on a new history branch
	GET    /sessions/{id}/history    history tree document
	GET    /sessions/{id}/events     state diffs as server-sent events
	GET    /graph                    Mermaid flowchart, ?session_id= highlights the current node
	GET    /health
	GET    /metrics                  Prometheus exposition

Collaborator failures map to 503, unknown sessions to 404.
*/
package http
