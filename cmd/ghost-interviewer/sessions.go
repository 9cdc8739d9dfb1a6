package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/storage"
)

var errNoSelection = errors.New("no session selected")

// resumeFlag accepts both "-resume" and "-resume=<id>". A bare "-resume"
// asks interactively unless an id follows as a positional argument.
type resumeFlag struct {
	set bool
	id  string
}

func (f *resumeFlag) String() string { return f.id }

func (f *resumeFlag) Set(v string) error {
	f.set = true
	if v != "true" {
		f.id = v
	}
	return nil
}

func (f *resumeFlag) IsBoolFlag() bool { return true }

type recoverableLister interface {
	ListRecoverable() ([]storage.RecoveryInfo, error)
}

func printRecoverable(w io.Writer, infos []storage.RecoveryInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No recoverable sessions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSESSION\tCANDIDATE\tPOSITION\tPHASE\tSTATUS\tLAST SAVED")
	for i, info := range infos {
		saved := "-"
		if !info.LastCheckpoint.IsZero() {
			saved = info.LastCheckpoint.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, info.SessionID, info.CandidateName, info.PositionTitle, info.CurrentPhase, info.Status, saved)
	}
	_ = tw.Flush()
}

func listSessions(w io.Writer, store recoverableLister) error {
	infos, err := store.ListRecoverable()
	if err != nil {
		return err
	}
	printRecoverable(w, infos)
	return nil
}

// promptSession shows the recoverable sessions and reads a choice by number
// or id. An empty answer selects nothing.
func promptSession(in io.Reader, out io.Writer, store recoverableLister) (string, error) {
	infos, err := store.ListRecoverable()
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No recoverable sessions.")
		return "", errNoSelection
	}

	printRecoverable(out, infos)
	fmt.Fprint(out, "Resume which session? [number or id, empty to cancel]: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read choice: %w", err)
	}
	return parseChoice(strings.TrimSpace(line), infos)
}

func parseChoice(choice string, infos []storage.RecoveryInfo) (string, error) {
	if choice == "" {
		return "", errNoSelection
	}
	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(infos) {
			return "", fmt.Errorf("choice %d out of range 1-%d", n, len(infos))
		}
		return infos[n-1].SessionID, nil
	}
	for _, info := range infos {
		if info.SessionID == choice {
			return choice, nil
		}
	}
	return "", fmt.Errorf("unknown session %q", choice)
}

type sessionLoader interface {
	recoverableLister
	Load(id string) (*session.Session, error)
}

// loadResumable loads id and refuses sessions that already finished.
func loadResumable(store sessionLoader, id string) (*session.Session, error) {
	sess, err := store.Load(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCorruptState) {
			return nil, fmt.Errorf("no resumable session %q: %w", id, err)
		}
		return nil, err
	}
	if !sess.Status().Recoverable() {
		return nil, fmt.Errorf("session %s is %s and cannot be resumed", id, sess.Status())
	}
	return sess, nil
}

func newSession(jobFile string, phases []string, now time.Time) (*session.Session, error) {
	profile := session.DefaultProfile()
	if jobFile != "" {
		p, err := session.LoadProfile(jobFile)
		if err != nil {
			return nil, err
		}
		profile = p
	}
	return session.New(profile.Job, profile.Candidate, phases, now), nil
}
