package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve feeds lines to the run command and decodes one response per line.
func (h *cliHarness) serve(lines ...string) []RunResponse {
	h.t.Helper()
	cmd := newRootCommand(&RootOptions{WallClock: h.wall, RequestIDs: h.ids})
	stdout := &bytes.Buffer{}
	cmd.SetIn(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", h.db, "run"})
	require.NoError(h.t, cmd.ExecuteContext(context.Background()))

	var out []RunResponse
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		var resp RunResponse
		require.NoError(h.t, json.Unmarshal(scanner.Bytes(), &resp), "line: %s", scanner.Text())
		out = append(out, resp)
	}
	require.NoError(h.t, scanner.Err())
	return out
}

func TestRun_ServesRequests(t *testing.T) {
	h := newCLIHarness(t)
	responses := h.serve(
		`{"operation":"initialize","caller":"`+authorityID+`","args":{"fee_bps":500,"burn_bps":2000}}`,
		`{"id":"drop-1","operation":"airdrop","caller":"`+payerID+`","args":{"amount":"2000000000"}}`,
		``,
		`{"operation":"accrue_fee","caller":"`+payerID+`","args":{"amount":"1000000000"}}`,
		`{"operation":"burn_sol","caller":"`+strangerID+`","args":{"amount":"10000000"}}`,
	)
	require.Len(t, responses, 4)

	assert.Equal(t, "ok", responses[0].Status)
	assert.Equal(t, 1, responses[0].Line)
	require.NotNil(t, responses[0].Request)
	assert.Equal(t, "Success", responses[0].Request.OutputCase)

	assert.Equal(t, "drop-1", responses[1].Request.RequestID)

	assert.Equal(t, 4, responses[2].Line)
	burned, err := responses[2].Request.Result.String("burned")
	require.NoError(t, err)
	assert.Equal(t, "200000000", burned)

	assert.Equal(t, "rejected", responses[3].Status)
	require.NotNil(t, responses[3].Error)
	assert.Equal(t, "Unauthorized", responses[3].Error.Code)
	assert.Equal(t, int64(4), responses[3].Request.Seq)

	out := h.mustRun("balance", "incinerator")
	assert.Contains(t, out, "200000000 lamports")
}

func TestRun_BadLinesDoNotStopTheLoop(t *testing.T) {
	h := newCLIHarness(t)
	responses := h.serve(
		`not json`,
		`{"operation":"initialize","caller":"nobody"}`,
		`{"operation":"mint","caller":"`+authorityID+`"}`,
		`{"operation":"accrue_fee","caller":"`+payerID+`","args":{"amount":"lots"}}`,
		`{"operation":"initialize","caller":"`+authorityID+`","args":{"fee_bps":500,"burn_bps":2000}}`,
	)
	require.Len(t, responses, 5)

	for i, resp := range responses[:4] {
		assert.Equal(t, "error", resp.Status, "line %d", i+1)
		require.NotNil(t, resp.Error, "line %d", i+1)
		assert.Equal(t, CodeInvalidArgs, resp.Error.Code, "line %d", i+1)
		assert.Nil(t, resp.Request, "line %d", i+1)
	}
	assert.Contains(t, responses[0].Error.Message, "malformed request")
	assert.Contains(t, responses[1].Error.Message, "caller")

	assert.Equal(t, "ok", responses[4].Status)
	assert.Equal(t, int64(1), responses[4].Request.Seq, "rejected lines are not sequenced")
}

func TestRun_ResumesSeq(t *testing.T) {
	h := newCLIHarness(t)
	h.seed()

	responses := h.serve(`{"operation":"accrue_fee","caller":"` + payerID + `","args":{"amount":"1000000000"}}`)
	require.Len(t, responses, 1)
	assert.Equal(t, int64(3), responses[0].Request.Seq)
}
