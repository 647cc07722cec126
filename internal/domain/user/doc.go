// Package user owns accounts, credentials and bearer tokens.
//
// Passwords are bcrypt hashes; tokens are random 32-byte values of which only
// the SHA-256 digest is stored. Email and username uniqueness is enforced by
// claim documents whose ids are the normalized keys, so two concurrent
// registrations cannot both succeed.
package user
