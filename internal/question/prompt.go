package question

import (
	"fmt"
	"strings"

	"github.com/sjawhar/ghost-interviewer/internal/llm"
	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

const systemTemplate = `You are an experienced HR professional conducting a job interview.
You are interviewing for the position of {{position}} at {{company}}.
The candidate's name is {{candidate}}.

Important instructions:
1. Ask ONE question at a time
2. Keep questions relevant to the job requirements
3. Be professional but friendly
4. Listen actively to responses
5. Ask follow-up questions when appropriate

Job Requirements:
{{requirements}}

Candidate Background:
{{background}}`

var phaseInstructions = map[string]string{
	"warmup": "Start with a warm, welcoming question to make the candidate comfortable. " +
		"Ask about their background or what interests them about this role. " +
		"Keep it conversational and friendly.",
	"technical": "Ask a technical question related to the job requirements. " +
		"Focus on their practical experience with the required technologies. " +
		"Ask for specific examples from their past work.",
	"behavioral": "Ask a behavioral question using the STAR method. " +
		"Focus on situations where they demonstrated key soft skills like " +
		"teamwork, leadership, or problem-solving.",
	"situational": "Present a hypothetical scenario relevant to this role. " +
		"Ask how they would handle the situation and why. " +
		"The scenario should test their decision-making process.",
	"closing": "We're concluding the interview. Ask if they have any questions " +
		"about the role, company, or next steps.",
}

// Request carries the context a question is generated from.
type Request struct {
	Job       session.JobInfo
	Candidate session.CandidateInfo
	Phase     string
	Prior     []transcript.Turn
}

// BuildMessages renders the chat history sent to the model: a system prompt
// describing the role, every prior turn, then the phase instruction.
func BuildMessages(req Request) []llm.Message {
	system := strings.NewReplacer(
		"{{position}}", orDefault(req.Job.Title, "Unknown Position"),
		"{{company}}", orDefault(req.Job.Company, "Unknown Company"),
		"{{candidate}}", orDefault(req.Candidate.Name, "Candidate"),
		"{{requirements}}", formatRequirements(req.Job.Requirements),
		"{{background}}", formatBackground(req.Candidate),
	).Replace(systemTemplate)

	messages := make([]llm.Message, 0, len(req.Prior)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, turn := range req.Prior {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			text = "(no answer)"
		}
		switch turn.Speaker {
		case transcript.SpeakerAI:
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: text})
		case transcript.SpeakerHuman:
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})
		}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: phaseInstruction(req.Phase)})
	return messages
}

func phaseInstruction(phase string) string {
	base, ok := phaseInstructions[phase]
	if !ok {
		base = "Ask a relevant follow-up question."
	}
	return base + "\n\nIMPORTANT: Ask only ONE clear, specific question. Do not ask multiple questions at once."
}

func formatRequirements(r session.Requirements) string {
	var lines []string
	if len(r.TechnicalSkills) > 0 {
		lines = append(lines, "Technical Skills: "+strings.Join(r.TechnicalSkills, ", "))
	}
	if r.ExperienceYears > 0 {
		lines = append(lines, fmt.Sprintf("Experience: %d years", r.ExperienceYears))
	}
	if r.Education != "" {
		lines = append(lines, "Education: "+r.Education)
	}
	if len(lines) == 0 {
		return "Not specified"
	}
	return strings.Join(lines, "\n")
}

func formatBackground(c session.CandidateInfo) string {
	var lines []string
	if c.CurrentPosition != "" {
		lines = append(lines, "Current Position: "+c.CurrentPosition)
	}
	if c.YearsExperience > 0 {
		lines = append(lines, fmt.Sprintf("Total Experience: %d years", c.YearsExperience))
	}
	if len(c.KeySkills) > 0 {
		lines = append(lines, "Key Skills: "+strings.Join(c.KeySkills, ", "))
	}
	if len(lines) == 0 {
		return "Not specified"
	}
	return strings.Join(lines, "\n")
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
