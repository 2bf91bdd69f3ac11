package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/geotdo/leicactl/internal/model"
	"github.com/stretchr/testify/require"
)

func TestParseInstruction(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		given    string
		then     model.Instruction
	}{
		{"send", "dummyCommand; dummyResponse", model.Instruction{Kind: model.KindSend, Payload: "dummyCommand", Expected: "dummyResponse"}},
		{"send_delay", "%R1Q,2008:1,1;%R1P,0,0:0;100", model.Instruction{Kind: model.KindSend, Payload: "%R1Q,2008:1,1", Expected: "%R1P,0,0:0", ExtraDelay: 100 * time.Millisecond, HasDelay: true}},
		{"send_bad_delay", "cmd;resp;soon", model.Instruction{Kind: model.KindSend, Payload: "cmd", Expected: "resp"}},
		{"send_negative_delay", "cmd;resp;-10", model.Instruction{Kind: model.KindSend, Payload: "cmd", Expected: "resp"}},
		{"goto", "goTO; 1", model.Instruction{Kind: model.KindGoTo, Target: 1}},
		{"goto_delay", "GOTO;0;250", model.Instruction{Kind: model.KindGoTo, Target: 0, ExtraDelay: 250 * time.Millisecond, HasDelay: true}},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			in, err := model.ParseInstruction(tc.given)
			require.NoError(t, err)
			require.Equal(t, tc.then, in)
		})
	}
}

func TestParseInstruction_Malformed(t *testing.T) {
	t.Parallel()
	for _, given := range []string{
		"",
		"dummyCommand",
		";dummyResponse",
		"dummyCommand;",
		"  ;  ",
		"goto;next",
		"goto;-1",
	} {
		_, err := model.ParseInstruction(given)
		require.ErrorIs(t, err, model.ErrMalformedCommand, "line %q", given)
	}
}

func TestInstructionRoundTrip(t *testing.T) {
	t.Parallel()
	for _, line := range []string{"dummyCommand;dummyResponse", "cmd;resp;100", "goto;3;20"} {
		first, err := model.ParseInstruction(line)
		require.NoError(t, err)
		require.Equal(t, line, first.String())

		again, err := model.ParseInstruction(first.String())
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestLoadJob(t *testing.T) {
	t.Parallel()
	job, err := model.LoadJob(strings.NewReader("cmd1;resp1\r\n\r\ngoto;0;1000\n"))
	require.NoError(t, err)
	require.Equal(t, model.Job{"cmd1;resp1", "", "goto;0;1000"}, job)

	err = job.Check()
	require.Error(t, err)
	require.ErrorIs(t, err, model.ErrMalformedCommand)
	require.Contains(t, err.Error(), "row 1")
}

func TestJobCheck(t *testing.T) {
	t.Parallel()
	require.NoError(t, model.Job{"goTO;1", "cmd;resp"}.Check())

	err := model.Job{"goTO;2", "dummyLine1;x"}.Check()
	require.ErrorIs(t, err, model.ErrGoToOutOfRange)
	require.Contains(t, err.Error(), "line 2")

	require.EqualError(t, model.Job{}.Check(), "job is empty")
}
