package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const goToKeyword = "goto"

type InstructionKind int

const (
	KindSend InstructionKind = iota
	KindGoTo
)

// Instruction is one parsed job line. Send lines carry Payload and Expected,
// goto lines carry Target.
type Instruction struct {
	Kind       InstructionKind
	Payload    string
	Expected   string
	Target     int
	ExtraDelay time.Duration
	HasDelay   bool
}

// ParseInstruction parses a single job line:
//
//	<payload>;<expected response substring>[;<extra delay ms>]
//	goto;<target row>[;<extra delay ms>]
//
// Fields are trimmed. The goto keyword is case insensitive. A delay which is
// not a non-negative integer is ignored.
func ParseInstruction(line string) (Instruction, error) {
	fields := strings.Split(line, ";")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
		return Instruction{}, fmt.Errorf("%w: expected at least two non-empty fields separated by ';'", ErrMalformedCommand)
	}

	var in Instruction
	if len(fields) > 2 {
		if ms, err := strconv.Atoi(fields[2]); err == nil && ms >= 0 {
			in.ExtraDelay = time.Duration(ms) * time.Millisecond
			in.HasDelay = true
		}
	}

	if strings.EqualFold(fields[0], goToKeyword) {
		target, err := strconv.Atoi(fields[1])
		if err != nil || target < 0 {
			return Instruction{}, fmt.Errorf("%w: goto target %q is not a row number", ErrMalformedCommand, fields[1])
		}
		in.Kind = KindGoTo
		in.Target = target
		return in, nil
	}

	in.Kind = KindSend
	in.Payload = fields[0]
	in.Expected = fields[1]
	return in, nil
}

// String formats the instruction back into its canonical job line.
func (in Instruction) String() string {
	var b strings.Builder
	switch in.Kind {
	case KindGoTo:
		b.WriteString(goToKeyword)
		b.WriteByte(';')
		b.WriteString(strconv.Itoa(in.Target))
	default:
		b.WriteString(in.Payload)
		b.WriteByte(';')
		b.WriteString(in.Expected)
	}
	if in.HasDelay {
		b.WriteByte(';')
		b.WriteString(strconv.FormatInt(in.ExtraDelay.Milliseconds(), 10))
	}
	return b.String()
}

// Job is the ordered script executed against the instrument. Rows are kept
// raw and parsed only when the engine reaches them, so row numbers always
// match the lines of the source file.
type Job []string

// Instruction parses the row. It panics on an out of range row like any
// slice access would.
func (j Job) Instruction(row int) (Instruction, error) {
	return ParseInstruction(j[row])
}

// Check parses every row and reports all malformed lines and goto targets
// outside of the job.
func (j Job) Check() error {
	if len(j) == 0 {
		return errors.New("job is empty")
	}
	var errs []error
	for row := range j {
		in, err := j.Instruction(row)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", row, err))
			continue
		}
		if in.Kind == KindGoTo && in.Target >= len(j) {
			errs = append(errs, fmt.Errorf("row %d: %w: goto command jumps to line %d which does not exist in the job", row, ErrGoToOutOfRange, in.Target))
		}
	}
	return errors.Join(errs...)
}

// LoadJob reads one instruction per line. Empty lines are kept, they become
// malformed rows, so goto targets refer to file lines.
func LoadJob(r io.Reader) (Job, error) {
	var job Job
	s := bufio.NewScanner(r)
	for s.Scan() {
		job = append(job, strings.TrimRight(s.Text(), "\r"))
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading job: %w", err)
	}
	return job, nil
}

func ReadJobFile(path string) (Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening job file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadJob(f)
}
