// Package student implements the student registry: the record store
// adapter and the service that validates requests, writes to the store and
// announces each committed change to the observer hub.
//
// Every error leaving the Service matches exactly one of ErrValidation,
// ErrNotFound, ErrIntegrity or ErrTransient under errors.Is.
package student
