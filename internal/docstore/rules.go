package docstore

type Role string
type Op string

const (
	RoleChair    Role = "chair"
	RoleDelegate Role = "delegate"
	RoleObserver Role = "observer"
)

const (
	OpWrite  Op = "write"
	OpPush   Op = "push"
	OpRemove Op = "remove"
)

// Actor identifies the viewer performing a store operation.
type Actor struct {
	ID   string
	Role Role
}

// Rules decides whether an actor may perform op against path. Reads are
// never gated; denied writes surface only on the notification side channel.
type Rules func(op Op, path string, actor Actor) bool

// DefaultRules: the chair mutates anything under sessions/. Delegates may
// add themselves to speaker queues, propose and second motions, and update
// their own member record. Observers never write.
func DefaultRules(op Op, path string, actor Actor) bool {
	segments := splitPath(path)
	if len(segments) == 0 || segments[0] != "sessions" {
		return false
	}
	switch actor.Role {
	case RoleChair:
		return true
	case RoleDelegate:
		if op == OpPush && (hasSegment(segments, "queue") || last(segments) == "motions") {
			return true
		}
		if op == OpWrite && len(segments) >= 4 && segments[len(segments)-2] == "motions" {
			return true
		}
		if op == OpWrite && len(segments) >= 4 && segments[2] == "members" && segments[3] == actor.ID {
			return true
		}
		return false
	default:
		return false
	}
}

// NormalizeRole maps arbitrary input to a known role, defaulting to observer.
func NormalizeRole(role string) Role {
	switch Role(role) {
	case RoleChair, RoleDelegate, RoleObserver:
		return Role(role)
	default:
		return RoleObserver
	}
}

func hasSegment(segments []string, want string) bool {
	for _, seg := range segments {
		if seg == want {
			return true
		}
	}
	return false
}

func last(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}
