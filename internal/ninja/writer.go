// Copyright 2014 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Modified from ninja_writer.go in github.com/google/blueprint: output goes
// to an io.StringWriter and write errors are returned.

package ninja

import (
	"io"
	"strings"
	"unicode"
)

const (
	indentWidth = 4
	lineWidth   = 80
)

var indentString = strings.Repeat(" ", indentWidth*2)

// writer emits ninja statements, wrapping long build lines.
type writer struct {
	w io.StringWriter

	justDidBlankLine bool // true if the last operation was a BlankLine
}

func newWriter(w io.StringWriter) *writer {
	return &writer{w: w}
}

func (n *writer) Comment(comment string) error {
	n.justDidBlankLine = false
	for _, line := range strings.Split(comment, "\n") {
		if _, err := n.w.WriteString(strings.TrimSpace("# "+line) + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (n *writer) Rule(name string) error {
	n.justDidBlankLine = false
	return n.writeStatement("rule", name)
}

func (n *writer) Build(rule string, outputs, explicitDeps, implicitDeps, orderOnlyDeps []string) error {
	n.justDidBlankLine = false

	wrapper := wrapWriter{
		writer:     n,
		maxLineLen: lineWidth - len(" $"),
	}

	wrapper.WriteString("build")
	for _, output := range outputs {
		wrapper.WriteStringWithSpace(escapePath(output))
	}
	wrapper.WriteString(":")
	wrapper.WriteStringWithSpace(rule)

	for _, dep := range explicitDeps {
		wrapper.WriteStringWithSpace(escapePath(dep))
	}
	if len(implicitDeps) > 0 {
		wrapper.WriteStringWithSpace("|")
		for _, dep := range implicitDeps {
			wrapper.WriteStringWithSpace(escapePath(dep))
		}
	}
	if len(orderOnlyDeps) > 0 {
		wrapper.WriteStringWithSpace("||")
		for _, dep := range orderOnlyDeps {
			wrapper.WriteStringWithSpace(escapePath(dep))
		}
	}
	return wrapper.Flush()
}

func (n *writer) Assign(name, value string) error {
	n.justDidBlankLine = false
	_, err := n.w.WriteString(name + " = " + value + "\n")
	return err
}

func (n *writer) ScopedAssign(name, value string) error {
	n.justDidBlankLine = false
	_, err := n.w.WriteString(indentString[:indentWidth] + name + " = " + value + "\n")
	return err
}

func (n *writer) Default(targets ...string) error {
	n.justDidBlankLine = false

	wrapper := wrapWriter{
		writer:     n,
		maxLineLen: lineWidth - len(" $"),
	}
	wrapper.WriteString("default")
	for _, target := range targets {
		wrapper.WriteStringWithSpace(escapePath(target))
	}
	return wrapper.Flush()
}

func (n *writer) BlankLine() (err error) {
	// We don't output multiple blank lines in a row.
	if !n.justDidBlankLine {
		n.justDidBlankLine = true
		_, err = n.w.WriteString("\n")
	}
	return err
}

func (n *writer) writeStatement(directive, name string) error {
	_, err := n.w.WriteString(directive + " " + name + "\n")
	return err
}

type wrapWriter struct {
	*writer
	maxLineLen int
	writtenLen int
	err        error
}

func (n *wrapWriter) writeString(s string, space bool) {
	if n.err != nil {
		return
	}

	spaceLen := 0
	if space {
		spaceLen = 1
	}

	if n.writtenLen+len(s)+spaceLen > n.maxLineLen {
		_, n.err = n.w.WriteString(" $\n" + indentString)
		if n.err != nil {
			return
		}
		n.writtenLen = len(indentString)
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
	} else if space {
		_, n.err = n.w.WriteString(" ")
		if n.err != nil {
			return
		}
		n.writtenLen++
	}

	_, n.err = n.w.WriteString(s)
	n.writtenLen += len(s)
}

func (n *wrapWriter) WriteString(s string) {
	n.writeString(s, false)
}

func (n *wrapWriter) WriteStringWithSpace(s string) {
	n.writeString(s, true)
}

func (n *wrapWriter) Flush() error {
	if n.err != nil {
		return n.err
	}
	_, err := n.w.WriteString("\n")
	return err
}

var (
	pathEscaper  = strings.NewReplacer("$", "$$", " ", "$ ", ":", "$:", "\n", "$\n")
	valueEscaper = strings.NewReplacer("$", "$$", "\n", " ")
)

func escapePath(s string) string {
	return pathEscaper.Replace(s)
}

func escapeValue(s string) string {
	return valueEscaper.Replace(s)
}
