package domain

import (
	"fmt"
	"strings"
)

// SessionRecord is the single live (access, refresh) session pair of a principal.
// It lives only in the cache under session:userId:<user_id>.
type SessionRecord struct {
	AccessSessionID  string
	RefreshSessionID string
}

func (r SessionRecord) String() string {
	return r.AccessSessionID + ":" + r.RefreshSessionID
}

// ParseSessionRecord decodes the "<access>:<refresh>" cache value.
func ParseSessionRecord(v string) (SessionRecord, error) {
	access, refresh, ok := strings.Cut(v, ":")
	if !ok || access == "" || refresh == "" {
		return SessionRecord{}, fmt.Errorf("malformed session record %q", v)
	}
	return SessionRecord{AccessSessionID: access, RefreshSessionID: refresh}, nil
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
