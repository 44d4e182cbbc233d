// Package remote implements the feed.Client interface against the NoteHub
// HTTP API. It owns request construction, token authentication and page
// iteration; callers only see chunks and proposals.
package remote
