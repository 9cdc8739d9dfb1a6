package interview

import (
	"fmt"

	"github.com/sjawhar/ghost-interviewer/internal/session"
)

func WelcomeMessage(job session.JobInfo, candidate session.CandidateInfo) string {
	position := job.Title
	if job.Company != "" {
		position += " position at " + job.Company
	} else {
		position += " position"
	}
	return fmt.Sprintf("Hello %s, welcome to your interview for the %s. "+
		"I will ask you a few questions, one at a time. "+
		"Feel free to start answering whenever you are ready, even if I am still talking. Let's begin.",
		nameOr(candidate.Name), position)
}

func ResumeMessage(candidate session.CandidateInfo, phase string) string {
	return fmt.Sprintf("Welcome back, %s. Let's continue where we left off, with the %s part of the interview.",
		nameOr(candidate.Name), phase)
}

func ClosingMessage(candidate session.CandidateInfo) string {
	return fmt.Sprintf("Thank you for your time, %s. That concludes our interview. "+
		"We will be in touch about next steps. Goodbye.", nameOr(candidate.Name))
}

func nameOr(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
