// Package export drives a paginated traversal of one Constant Contact
// listing and persists every item through an artifact.Writer.
//
// An Engine fetches listing pages one at a time, hands each item to its
// Variant, and counts the outcomes in a Tally:
//
//	v := export.NewCampaignData(api, endpoints, writer)
//	eng := export.NewEngine(api, v, export.DefaultConfig())
//	tally, err := eng.Run(ctx)
//	fmt.Printf("%d campaigns downloaded, %d download errors.\n", tally.Downloaded, tally.Failed)
//
// Item failures are counted and skipped. Page failures, empty pages and
// malformed next links abort the run; the tally collected so far is
// returned with the error.
package export
