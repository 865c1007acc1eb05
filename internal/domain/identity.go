package domain

// IdentityKind orders shopper identities by level. Transitions within one session only move up.
type IdentityKind int

const (
	IdentityNone IdentityKind = iota
	IdentityAnonymous
	IdentityAuthenticated
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityAnonymous:
		return "anonymous"
	case IdentityAuthenticated:
		return "authenticated"
	default:
		return "none"
	}
}

// Identity is the active shopper: either Anonymous(token) or Authenticated(userID).
type Identity struct {
	Kind           IdentityKind `json:"kind"`
	AnonymousToken string       `json:"anonymousToken,omitempty"`
	UserID         string       `json:"userId,omitempty"`
}

func Anonymous(token string) Identity {
	return Identity{Kind: IdentityAnonymous, AnonymousToken: token}
}

func Authenticated(userID string) Identity {
	return Identity{Kind: IdentityAuthenticated, UserID: userID}
}

func (i Identity) IsZero() bool { return i.Kind == IdentityNone }

func (i Identity) IsAnonymous() bool { return i.Kind == IdentityAnonymous }

func (i Identity) IsAuthenticated() bool { return i.Kind == IdentityAuthenticated }

// OwnerKey is the storage key that owns carts and addresses.
func (i Identity) OwnerKey() string {
	switch i.Kind {
	case IdentityAnonymous:
		return AnonymousOwner(i.AnonymousToken)
	case IdentityAuthenticated:
		return "user:" + i.UserID
	default:
		return ""
	}
}

// AnonymousOwner returns the owner key used for carts of an anonymous token.
func AnonymousOwner(token string) string {
	return "anon:" + token
}

// Transition is one identity change observed by session subscribers.
type Transition struct {
	From Identity
	To   Identity
}

// IsUpgrade reports whether the transition moves from an anonymous to an authenticated identity.
func (t Transition) IsUpgrade() bool {
	return t.From.IsAnonymous() && t.To.IsAuthenticated()
}
