// Package cli assembles the application from its configuration and implements
// the behavior behind the cobra commands in cmd/dialogtree.
package cli
