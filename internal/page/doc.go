// Package page models the research page the stream renderer drives.
//
// A Document exposes the elements the renderer relies on by ID:
//
//	startResearch  the control whose activation starts a run (Button)
//	fadeInHeader   a header hidden when a run starts (Header)
//	userInput      the company text field (Input)
//	report         the element that displays the streamed report (Report)
//
// plus any number of checkboxes whose IDs form the criteria vocabulary.
// Documents are safe for concurrent use: several runs may write the report
// at the same time, and the last write wins.
package page
