// Package remote resolves {git, tag} dependency declarations by downloading
// tagged source archives from GitHub or GitLab.
//
// # Cache layout
//
// Downloads and extracted packages live under the file manager's data
// directory:
//
//	archives/<safe(host + archive path)>.zip
//	libs/<safe(host/owner/repo@tag)>/<directory>
//
// where safe replaces every byte outside [A-Za-z0-9_-] with "_". A package
// whose manifest is already extracted is loaded without network access; a
// cached archive is reused without downloading it again.
//
// # Fetching
//
// Downloads go through the [ArchiveFetcher] interface, usually an
// integrations.Fetcher. Concurrent resolutions of the same archive within a
// process share a single download.
package remote
