// Package policy builds the remapping policy from its YAML file.
// It owns the key notation (C-S-M-s-<keysym>), policy file discovery and
// the human-readable dump used by "remapd check --dump".
package policy
