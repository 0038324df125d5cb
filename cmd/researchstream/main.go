// Package main provides the entry point for the researchstream CLI.
//
// researchstream asks a company research server for a report on one or
// more companies and renders the streamed answer as it arrives, the same
// way the research page does when its start button is clicked.
//
// Usage:
//
//	researchstream research "Acme Corp" --criteria background,recent_news
//	researchstream history
//
// See --help for all available options.
package main

// main is the entry point for researchstream.
func main() {
	Execute()
}
