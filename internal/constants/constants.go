package constants

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusAbandoned = "abandoned"
)

const (
	ModeSimulation = "simulation"
	ModeQuiz       = "quiz"
)

const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
)

const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeTrueFalse      = "true_false"
)

const (
	BadgeConditionFirstSession    = "first_session"
	BadgeConditionPerfectScore    = "perfect_score"
	BadgeConditionSessionCount    = "session_count"
	BadgeConditionAverageSubscore = "average_subscore"
)

const (
	SubscoreEmpathy         = "empathy"
	SubscoreProblemSolving  = "problem_solving"
	SubscoreProfessionalism = "professionalism"
)

const (
	QueueSessionCompleted = "training.session_completed"
	QueueBadgeEarned      = "user.badge_earned"
)
