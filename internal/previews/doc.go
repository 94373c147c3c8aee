// Package previews renders and manages derived preview artifacts for
// catalog files: a small thumbnail and a medium-sized render per photo,
// stored on disk under a sharded directory layout. It also provides the
// background workers that fill in missing previews and sweep orphaned
// artifacts.
package previews
