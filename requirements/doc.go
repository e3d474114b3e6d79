// Package requirements rolls test outcomes up against the project's
// requirement and release trees.
//
// Requirements and releases never own test outcomes. An outcome belongs to a
// node when it carries a tag named after the node, and each node's totals are
// the union of its own matches and its descendants', deduplicated by test
// identity so a test tagged at several levels is counted once.
package requirements
