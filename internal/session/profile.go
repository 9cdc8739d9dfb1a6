package session

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is the job and candidate context an interview is created from.
// Profile files may be YAML or JSON.
type Profile struct {
	Job       JobInfo       `yaml:"job"`
	Candidate CandidateInfo `yaml:"candidate"`
}

func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// DefaultProfile is used when no profile file is given.
func DefaultProfile() Profile {
	return Profile{
		Job: JobInfo{
			Title:   "Software Engineer",
			Company: "Acme",
			Requirements: Requirements{
				TechnicalSkills: []string{"Go", "distributed systems", "SQL"},
				ExperienceYears: 3,
			},
		},
		Candidate: CandidateInfo{Name: "Candidate"},
	}
}

func (p Profile) validate() error {
	var errs []error
	if strings.TrimSpace(p.Job.Title) == "" {
		errs = append(errs, errors.New("job.title is required"))
	}
	if strings.TrimSpace(p.Candidate.Name) == "" {
		errs = append(errs, errors.New("candidate.name is required"))
	}
	return errors.Join(errs...)
}
