package patchengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caedis/mtg-installer/internal/logging"
)

// Job is the document handed to an engine process.
type Job struct {
	Input           string            `yaml:"input"`
	Output          string            `yaml:"output"`
	Mods            []string          `yaml:"mods"`
	Relink          map[string]string `yaml:"relink,omitempty"`
	MapDependencies bool              `yaml:"map_dependencies"`
	AutoPatch       bool              `yaml:"auto_patch"`
}

// ReadJob decodes a job file written by a Process session.
func ReadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patch job: %w", err)
	}
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parsing patch job: %w", err)
	}
	return &job, nil
}

// Process runs an external command once per session. The path of a YAML
// job file is appended as the last argument.
type Process struct {
	Command []string
	// Env is added to the environment of the command.
	Env []string
}

type module struct {
	name string
	path string
}

func (m module) Name() string { return m.name }
func (m module) Path() string { return m.path }

// LoadModule checks that the assembly exists. The process loads it itself.
func (p *Process) LoadModule(_ context.Context, path string) (Module, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("loading module: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("loading module: %s is a directory", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return module{name: name, path: path}, nil
}

func (p *Process) Open(_ context.Context, input, output string, relinks map[string]Module) (Session, error) {
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("reading patch target: %w", err)
	}
	job := &Job{Input: input, Output: output}
	if len(relinks) > 0 {
		job.Relink = make(map[string]string, len(relinks))
		for symbol, mod := range relinks {
			job.Relink[symbol] = mod.Path()
		}
	}
	return &processSession{proc: p, job: job}, nil
}

type processSession struct {
	proc    *Process
	job     *Job
	jobPath string
	closed  bool
}

func (s *processSession) ReadMod(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("reading patch assembly: %w", err)
	}
	s.job.Mods = append(s.job.Mods, path)
	return nil
}

func (s *processSession) MapDependencies(context.Context) error {
	s.job.MapDependencies = true
	return nil
}

func (s *processSession) AutoPatch(context.Context) error {
	s.job.AutoPatch = true
	return nil
}

func (s *processSession) Write(ctx context.Context) error {
	if s.closed {
		return errors.New("session is closed")
	}
	if len(s.proc.Command) == 0 {
		return errors.New("no patch engine command configured")
	}

	data, err := yaml.Marshal(s.job)
	if err != nil {
		return fmt.Errorf("encoding patch job: %w", err)
	}
	f, err := os.CreateTemp("", "mtg-patch-*.yml")
	if err != nil {
		return fmt.Errorf("creating patch job: %w", err)
	}
	s.jobPath = f.Name()
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("writing patch job: %w", err)
	}

	args := append(append([]string(nil), s.proc.Command[1:]...), s.jobPath)
	cmd := exec.CommandContext(ctx, s.proc.Command[0], args...)
	cmd.Env = append(os.Environ(), s.proc.Env...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logging.Debugf("Verbose: running patch engine %s %s\n", s.proc.Command[0], strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg != "" {
			return fmt.Errorf("patch engine: %w: %s", err, msg)
		}
		return fmt.Errorf("patch engine: %w", err)
	}
	if out.Len() > 0 {
		logging.Debugf("%s", out.String())
	}
	if _, err := os.Stat(s.job.Output); err != nil {
		return fmt.Errorf("patch engine produced no output: %w", err)
	}
	return nil
}

func (s *processSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.jobPath != "" {
		if err := os.Remove(s.jobPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
