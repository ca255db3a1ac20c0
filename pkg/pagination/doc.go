// Package pagination models the cursor-based paging protocol of the
// Constant Contact v2 API.
//
// Every collection endpoint returns pages shaped like:
//
//	{
//	  "results": [ ... ],
//	  "meta": {"pagination": {"next_link": "/v2/emailmarketing/campaigns?next=c3RhcnRBdD0z"}}
//	}
//
// The token after "next=" is opaque. NextCursor extracts it and callers
// re-inject it verbatim as the next query parameter of the follow-up request:
//
//	token, ok, err := pagination.NextCursor(page)
//	if err != nil {
//		return err // malformed link
//	}
//	if !ok {
//		return nil // last page
//	}
//
// A missing or null next_link ends the traversal. A next_link that carries
// no token is reported as ErrMalformedNextLink.
package pagination
