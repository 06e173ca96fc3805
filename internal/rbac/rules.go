package rbac

const (
	PermPractice       = "practice:use"
	PermAttemptViewOwn = "attempt:view-own"
	PermAttemptViewAll = "attempt:view-all"
	PermLearnerReset   = "learner:reset"
)

// DefaultPolicy grants learners their own data and admins everything.
var DefaultPolicy = Policy{
	"learner": {PermPractice, PermAttemptViewOwn, PermLearnerReset},
	"admin":   {"*"},
}
