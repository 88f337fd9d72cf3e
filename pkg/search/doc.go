// Package search binds listing search criteria from query strings and runs
// them against the listing store.
//
// # Overview
//
// A search goes through two steps. ParseRequest binds url.Values to a
// Request, collecting every validation failure as a FieldError instead of
// stopping at the first one. Manager.Search turns a valid Request into a
// storage query and returns one page of listings together with the total
// number of matches.
//
// # Form fields
//
//   - location: free-text address, kept for redisplay only
//   - lat, lng: reference point, required by the distance sort
//   - ne_lat, ne_lng, sw_lat, sw_lng: map viewport, all four or none
//   - categories: category id, repeatable
//   - price_min, price_max: whole units of the base currency
//   - date_start, date_end: YYYY-MM-DD, the stay is [date_start, date_end)
//   - keywords: words matched as prefixes against titles and descriptions
//   - sort_by: recommended (default), price or distance
//   - page: 1-based page number
//   - max_per_page: page size, capped by the configured maximum
//
// A query string is considered a submitted form as soon as any of these
// keys is present (IsSubmitted). Unknown keys are ignored.
//
// # Usage
//
//	req, errs := search.ParseRequest(r.URL.Query(), search.Defaults{MaxPerPage: 20})
//	if len(errs) > 0 {
//		// show errs to the user
//	}
//	results, err := manager.Search(ctx, req, "en")
//	if err != nil {
//		return err
//	}
//	all, err := results.All(ctx) // every match, for map markers
//
// # Sessions
//
// Request is JSON serializable. The web layer keeps the last successful
// request in the visitor session, with SimilarListings holding the ids of
// its matches, to render the "similar listings" block on listing pages.
package search
