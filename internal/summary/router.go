package summary

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sjawhar/ghost-interviewer/internal/config"
	"github.com/sjawhar/ghost-interviewer/internal/llm"
)

// questionMarker identifies interviewer lines in a markdown transcript.
const questionMarker = "Interviewer:**"

const excerptWords = 400

// Router picks the assessment rubric that best fits an interview. The
// interviewer's questions say more about the role than the candidate's
// answers, so only they are shown to the model when present.
type Router struct {
	cfg     config.Assessment
	factory ClientFactory
	logger  *slog.Logger
}

func NewRouter(cfg config.Assessment, factory ClientFactory) *Router {
	return &Router{cfg: cfg, factory: factory, logger: slog.Default().With("component", "summary.router")}
}

// Excerpt returns at most maxWords words describing the interview: the
// interviewer's questions when the transcript has them, otherwise its
// opening.
func Excerpt(transcript string, maxWords int) string {
	var questions []string
	for _, line := range strings.Split(transcript, "\n") {
		if _, q, ok := strings.Cut(line, questionMarker); ok {
			if q = strings.TrimSpace(q); q != "" {
				questions = append(questions, "- "+q)
			}
		}
	}
	source := transcript
	if len(questions) > 0 {
		source = strings.Join(questions, "\n")
	}

	words := 0
	var b strings.Builder
	for _, line := range strings.Split(source, "\n") {
		fields := strings.Fields(line)
		if words+len(fields) > maxWords {
			fields = fields[:maxWords-words]
			b.WriteString(strings.Join(fields, " ") + " [...]")
			return strings.TrimSpace(b.String())
		}
		words += len(fields)
		b.WriteString(line + "\n")
	}
	return strings.TrimSpace(b.String())
}

func (r *Router) SelectPreset(ctx context.Context, transcript string) (string, error) {
	names := r.presetNames()
	if len(names) == 0 {
		return "", fmt.Errorf("no assessment presets configured")
	}

	var rubrics strings.Builder
	for _, name := range names {
		fmt.Fprintf(&rubrics, "- %s: %s\n", name, r.cfg.Presets[name].Description)
	}
	prompt := fmt.Sprintf(`These are the questions asked in a job interview:

%s

Which assessment rubric fits the role being interviewed for?

%s
Reply with ONLY the rubric name.`, Excerpt(transcript, excerptWords), rubrics.String())

	provider, model, err := llm.ParseModel(r.cfg.Model)
	if err != nil {
		return r.fallback(names, "parse model", err), nil
	}
	client, err := r.factory(provider, model)
	if err != nil {
		return r.fallback(names, "create client", err), nil
	}
	reply, err := client.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return r.fallback(names, "complete", err), nil
	}

	if chosen, ok := matchPreset(reply, names); ok {
		r.logger.Debug("rubric selected", "preset", chosen)
		return chosen, nil
	}
	return r.fallback(names, "unrecognized reply", fmt.Errorf("%q", reply)), nil
}

func (r *Router) presetNames() []string {
	names := make([]string, 0, len(r.cfg.Presets))
	for name := range r.cfg.Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// fallback prefers the "default" rubric, then the first by name.
func (r *Router) fallback(names []string, reason string, err error) string {
	chosen := names[0]
	if slices.Contains(names, "default") {
		chosen = "default"
	}
	r.logger.Warn("falling back to rubric", "preset", chosen, "reason", reason, "error", err)
	return chosen
}

// matchPreset accepts an exact name, ignoring case and stray quoting, or a
// sentence that mentions exactly one rubric.
func matchPreset(reply string, names []string) (string, bool) {
	cleaned := strings.ToLower(strings.Trim(strings.TrimSpace(reply), "`\"'.*"))
	for _, name := range names {
		if strings.ToLower(name) == cleaned {
			return name, true
		}
	}

	var found []string
	for _, name := range names {
		if strings.Contains(cleaned, strings.ToLower(name)) {
			found = append(found, name)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return "", false
}
