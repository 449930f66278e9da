// Package execpolicy classifies command argument vectors against ordered
// prefix rules loaded from declarative *.policy files.
//
// A rule's pattern is a sequence of tokens, each a literal string or a set
// of literal alternatives; a rule matches when every pattern token matches
// the command token at the same position, with trailing command tokens
// ignored. All matching rules are collected and the strictest decision wins
// (forbidden > prompt > allow). Zero matches is reported as such, distinct
// from an implicit allow.
//
// Rule files may carry match / not_match example command lines that are
// verified against the rule at load time; a failing example aborts the
// load of the whole rule set.
package execpolicy
