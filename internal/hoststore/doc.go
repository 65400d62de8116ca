// Package hoststore is the REST client for the host dataset store: it fetches
// item containers for processing and writes artifact bundles and triage status
// back onto the item, tagged with the run that produced them.
package hoststore
