package dag

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/3leaps/ntbatch/pkg/workunit"
)

// Artifact names inside a job directory.
const (
	SubmitFile = "job.sub"
	DAGFile    = "jobs.dag"
	FinishFile = DefaultTerminal + workunit.ScriptSuffix
)

// Template renders the shared submit description. Each node sets $(name),
// so the template runs <name>.sh and logs next to it.
type Template struct {
	// Medium asks the pool for medium-priority slots.
	Medium bool
}

func (t Template) Render() []byte {
	var sb strings.Builder
	sb.WriteString("Universe   = vanilla\n")
	sb.WriteString("Executable = $(name).sh\n")
	sb.WriteString("Output     = $(name).out\n")
	sb.WriteString("Error      = $(name).err\n")
	sb.WriteString("Log        = $(name).log\n")
	sb.WriteString("getenv = True\n")
	if t.Medium {
		sb.WriteString("+IsMediumJob = True\n")
	}
	sb.WriteString("queue\n")
	return []byte(sb.String())
}

// WriteDAG serializes g: a JOB and VARS entry per node, the terminal node
// last, then one PARENT line per work unit.
func WriteDAG(w io.Writer, g *Graph, submitFile string) error {
	bw := bufio.NewWriter(w)
	for _, n := range g.nodes {
		writeJob(bw, n, submitFile)
		bw.WriteString("\n")
	}
	writeJob(bw, g.terminal, submitFile)
	if len(g.nodes) > 0 {
		bw.WriteString("\n")
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(bw, "PARENT %s CHILD %s\n", e.Parent, e.Child)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write dag: %w", err)
	}
	return nil
}

func writeJob(w *bufio.Writer, name, submitFile string) {
	fmt.Fprintf(w, "JOB %s %s\n", name, submitFile)
	fmt.Fprintf(w, "VARS %s name=\"%s\"\n", name, name)
}

// FinishScript is the terminal node's wrapper. It changes to the run's
// working directory and runs the finishing commands in order.
type FinishScript struct {
	EnvName  string
	EnvValue string

	// Workdir is the working directory relative to the job directory.
	Workdir string

	Commands []string
}

func (f FinishScript) Render() []byte {
	var sb strings.Builder
	sb.WriteString("#!/bin/bash\n")
	sb.WriteString(workunit.ExportLine(f.EnvName, f.EnvValue))
	sb.WriteString("\n")
	if f.Workdir != "" && f.Workdir != "." {
		sb.WriteString("cd ")
		sb.WriteString(workunit.ShellQuote(f.Workdir))
		sb.WriteString("\n")
	}
	for _, c := range f.Commands {
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// Emit writes the submit template, the finishing script, and the DAG file.
func Emit(w workunit.ArtifactWriter, g *Graph, tmpl Template, finish FinishScript) error {
	if err := workunit.WriteFile(w, SubmitFile, tmpl.Render(), 0); err != nil {
		return fmt.Errorf("emit %s: %w", SubmitFile, err)
	}
	if err := workunit.WriteFile(w, g.terminal+workunit.ScriptSuffix, finish.Render(), workunit.ScriptMode); err != nil {
		return fmt.Errorf("emit finish script: %w", err)
	}

	f, err := w.Create(DAGFile)
	if err != nil {
		return fmt.Errorf("emit %s: %w", DAGFile, err)
	}
	if err := WriteDAG(f, g, SubmitFile); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("emit %s: %w", DAGFile, err)
	}
	return nil
}
