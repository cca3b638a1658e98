package rbac

// Roles known to the local API. Guest tokens are issued without a backend
// account; the others mirror the backend user role.
const (
	RoleGuest   = "guest"
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Permissions checked by the routes.
const (
	PermQuizTake      = "quiz:take"
	PermExamInstant   = "exam:instant"
	PermTutorChat     = "tutor:chat"
	PermLeaderboard   = "leaderboard:view"
	PermTheoryView    = "theory:view"
	PermTopicPractice = "topic:practice"
	PermAssignment    = "assignment:take"
	PermAdminBank     = "admin:bank"
	PermAdminExams    = "admin:exams"
	PermAdminStudents = "admin:students"
	PermAdminFiles    = "admin:files"
)

var guestPerms = []string{
	PermQuizTake,
	PermExamInstant,
	PermTutorChat,
	PermLeaderboard,
	PermTheoryView,
}

var studentPerms = append(append([]string{}, guestPerms...),
	PermTopicPractice,
	PermAssignment,
)

// DefaultPolicy is what the API routes enforce.
var DefaultPolicy = Policy{
	RoleGuest:   guestPerms,
	RoleStudent: studentPerms,
	RoleTeacher: append(append([]string{}, studentPerms...), "admin:*"),
	RoleAdmin:   {"*"},
}
