package question

import "math/rand/v2"

var fallbackQuestions = map[string][]string{
	"warmup": {
		"Could you briefly introduce yourself and your background?",
		"What interests you most about this role?",
	},
	"technical": {
		"Can you describe a challenging technical problem you solved recently?",
		"Which technologies have you worked with most, and what did you build with them?",
	},
	"behavioral": {
		"Can you describe a time when you had to work under pressure?",
		"How did you resolve a recent disagreement with a teammate?",
	},
	"situational": {
		"How would you approach debugging an issue in production?",
		"If a deadline slipped because of a blocker outside your team, what would you do?",
	},
	"closing": {
		"Do you have any questions for me?",
		"Is there anything else you would like us to know about you?",
	},
}

// Fallback returns a canned question for phase. Unknown phases use the
// technical pool.
func Fallback(phase string) string {
	pool, ok := fallbackQuestions[phase]
	if !ok {
		pool = fallbackQuestions["technical"]
	}
	return pool[rand.IntN(len(pool))]
}
