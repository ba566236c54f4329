// Package admission decides what happens to a discovered link: follow it,
// record it as an outside-domain link, or drop it.
//
// A Policy is built from a Config value, so site variants (different ignore
// lists, required paths, extensions) are configuration rather than code.
package admission
