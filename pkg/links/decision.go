package links

import (
	"time"

	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/storage/database/models"
)

type Outcome int

const (
	NotFound Outcome = iota
	Expired
	Granted
	LoginRequired
	Denied
)

func (o Outcome) String() string {
	switch o {
	case NotFound:
		return "not_found"
	case Expired:
		return "expired"
	case Granted:
		return "granted"
	case LoginRequired:
		return "login_required"
	case Denied:
		return "denied"
	}
	return "unknown"
}

const ReasonOwnerOnly = "owner only"

type Decision struct {
	Outcome Outcome
	// Reason is set for Denied.
	Reason string
	// ReturnPath is set for LoginRequired.
	ReturnPath string
}

func LinkPath(linkID string) string {
	return "/link/" + linkID
}

// Decide applies the access rules to an existing link. Expiry wins over
// everything, including ownership.
func Decide(link models.MusicLink, caller *auth.User, now time.Time) Decision {
	if link.Expired(now) {
		return Decision{Outcome: Expired}
	}

	if !link.IsPremium {
		return Decision{Outcome: Granted}
	}

	if caller == nil {
		return Decision{Outcome: LoginRequired, ReturnPath: LinkPath(link.LinkID)}
	}

	if caller.ID == link.UserID {
		return Decision{Outcome: Granted}
	}

	return Decision{Outcome: Denied, Reason: ReasonOwnerOnly}
}
