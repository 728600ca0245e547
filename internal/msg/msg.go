package msg

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Output is where all messages go. Tests may swap it.
var Output io.Writer = color.Output

func printLevel(level, format string, a ...any) {
	fmt.Fprintf(Output, "%s: %s\n", level, fmt.Sprintf(format, a...))
}

func Error(format string, a ...any) {
	printLevel(color.HiRedString("error"), format, a...)
}

func Warn(format string, a ...any) {
	printLevel(color.YellowString("warn"), format, a...)
}

func Fatal(format string, a ...any) {
	printLevel(color.RedString("fatal"), format, a...)
	os.Exit(1)
}

func Info(format string, a ...any) {
	printLevel(color.HiGreenString("info"), format, a...)
}

// Step prints a right-aligned green verb followed by a subject, e.g. "  Building libfoo.so"
func Step(verb, format string, a ...any) {
	fmt.Fprintf(Output, "%12s %s\n", color.HiGreenString(verb), fmt.Sprintf(format, a...))
}

// IndentWriter prefixes every line written through it with Indent
type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	var buf bytes.Buffer
	for _, c := range p {
		if !w.didIndent {
			buf.WriteString(w.Indent)
			w.didIndent = true
		}
		buf.WriteByte(c)
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	if _, err := w.W.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}
