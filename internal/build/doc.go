// Package build runs a postbuilder build.
//
// A build has two explicit phases. Phase 1 renders one page per post on a
// bounded worker group; every task touches only the post's own output
// directory and its failures are recorded without cancelling siblings.
// Phase 2 starts after every phase-1 task has finished and writes the
// aggregate artifacts (index, tag and series pages, sitemap, feed) from the
// metadata of all posts.
//
// Every artifact is guarded by the staleness controller, so a second build
// over unchanged inputs writes nothing.
package build
