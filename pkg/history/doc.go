/*
Package history implements the branching conversation history of a session.

A Tree holds independent root messages, each starting a branch. Messages are only
ever appended: a new message either becomes the last child of the active branch
tail or starts a new root. Trees are persisted as an indented JSON array of
{"role", "content", "children"} objects and parsed back strictly.
*/
package history
