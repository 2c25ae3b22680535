package domain

// MissReason tells why a resolution produced no redirect. It is only used
// for diagnostics; every miss is presented to the caller as not found.
type MissReason string

const (
	MissNotFound    MissReason = "not_found"
	MissDeactivated MissReason = "deactivated"
	MissMalformed   MissReason = "malformed"
)

// ResolveResult is either a hit carrying the redirect target or a miss.
type ResolveResult struct {
	Hit         bool
	OriginalURL string
	Reason      MissReason
}

func Hit(originalURL string) ResolveResult {
	return ResolveResult{Hit: true, OriginalURL: originalURL}
}

func Miss(reason MissReason) ResolveResult {
	return ResolveResult{Reason: reason}
}
