// Package location loads the static identity of a Halo installation: the
// locations exported from the vendor account (id, passphrase, fixtures) and
// the allowlist of radio transport identifiers the bridge may connect to.
//
// Both files are read once at startup and are immutable afterwards. A file
// that cannot be read or parsed is fatal; a malformed record inside an
// otherwise valid locations file is skipped and reported in File.Skipped.
package location
