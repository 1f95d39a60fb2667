/*
Package session runs dialog turns for many concurrent sessions.

A Manager rebuilds a runtime engine from the stored state and history for
every turn, serializes turns per session (in-process and, optionally, across
replicas through a ports.DistributedLocker) and persists the outcome through a
ports.SessionStore.
*/
package session
