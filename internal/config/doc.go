// Package config provides configuration structures and utilities for the
// research client. It defines the endpoint, transport and rendering options,
// the report output preferences, and the per-server settings read from the
// .researchstream YAML file.
package config
