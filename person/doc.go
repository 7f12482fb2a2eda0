// Package person is the Person/Address repository: Bun models, the
// declared query methods and typed wrappers over them.
package person
