// Package services provides the error taxonomy and context plumbing shared
// by pipeline stages and external collaborator clients.
package services
