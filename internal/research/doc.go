// Package research implements the stream renderer behind the research
// control of a page.
//
// A Renderer is bound to the startResearch button of a page.Document. Each
// click hides the header, sends the company and the checked criteria to the
// research endpoint, and renders the streamed response into the report
// element chunk by chunk using the policy of the configured variant.
package research
