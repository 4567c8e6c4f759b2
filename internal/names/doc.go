// Package names maps catalogue names onto legal, collision-free Go
// identifiers.
//
// The rules are applied in a fixed order so that repeated runs over
// the same catalogue always produce the same identifiers:
//
//  1. empty catalogue names are synthesized from the enclosing context
//     (the caller passes the context-qualified candidate);
//  2. the candidate is converted to a legal Go identifier (CamelCase
//     for exported names, illegal bytes hex-escaped);
//  3. names matching a Go keyword or predeclared identifier get a
//     fixed "_" suffix;
//  4. residual collisions get a deterministic numeric suffix derived
//     from catalogue index order, never from map iteration order.
package names
