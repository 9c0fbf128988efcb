// Package recipe loads declarative pipeline recipes written in HCL.
//
// It only parses and extracts references; ordering and validation against
// the registered operations happen in package dag.
package recipe
