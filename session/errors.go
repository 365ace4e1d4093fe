package session

import "errors"

var (
	// ErrDestroyed is returned by any call on a destroyed controller.
	ErrDestroyed = errors.New("session has been destroyed")
	// ErrNoActiveConversation is returned by Continue when no conversation
	// has been started.
	ErrNoActiveConversation = errors.New("no active conversation to continue")
	// ErrTokenLimitExceeded is returned before dispatch when the ledger
	// cannot cover another exchange and the hard token-limit policy is set.
	ErrTokenLimitExceeded = errors.New("token limit exceeded")
	// ErrNoRetriever is returned by Start when no retriever was injected.
	ErrNoRetriever = errors.New("no retriever configured")
)
