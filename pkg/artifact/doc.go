// Package artifact persists exported resources under the download directory.
//
// Layout:
//
//	<download_dir>/CampaignData/<YYYY-MM-DD>_<slug>.json
//	<download_dir>/Campaigns/<YYYY-MM-DD>_<slug>.pdf
//	<download_dir>/Library[/<folder>]/<slug><ext>
//
// Names are slugified so they are safe on every platform. Within one run no
// two artifacts of a category share a path: a repeated claim gets a numeric
// suffix (_1, _2, ...). Library files additionally probe the disk, so
// re-running a library export duplicates files instead of overwriting them.
// Campaign artifacts overwrite files left by earlier runs.
//
// A Writer reports every problem as a Failed Outcome; nothing it does
// aborts a traversal.
package artifact
