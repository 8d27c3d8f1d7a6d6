// Package session keeps the OAuth credentials of users who connected their
// Gmail account.
//
// A session is keyed by the opaque state value handed out with the consent
// URL. It starts out pending (no token) and becomes authorized once the OAuth
// callback stores the exchanged token. Two Store implementations exist: an
// in-process MemoryStore and a RedisStore for deployments with more than one
// replica.
//
// KeyedMutex serializes work on a single session so two imports for the same
// user never refresh and write back the token concurrently.
package session
