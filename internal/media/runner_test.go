package media

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	requireShell(t)
	res, err := NewExecRunner().Run(context.Background(), time.Second, "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecRunnerExitError(t *testing.T) {
	requireShell(t)
	_, err := NewExecRunner().Run(context.Background(), time.Second, "sh", "-c", "echo broken >&2; exit 3")
	var terr *ToolError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 3, terr.ExitCode)
	assert.Equal(t, "broken", strings.TrimSpace(terr.Stderr))
}

func TestExecRunnerTimeout(t *testing.T) {
	requireShell(t)
	r := &ExecRunner{WaitDelay: 100 * time.Millisecond}
	_, err := r.Run(context.Background(), 100*time.Millisecond, "sh", "-c", "sleep 5")
	assert.ErrorIs(t, err, ErrToolTimeout)
}

func TestExecRunnerMissingTool(t *testing.T) {
	_, err := NewExecRunner().Run(context.Background(), time.Second, "audioedit-no-such-tool")
	assert.ErrorIs(t, err, ErrToolMissing)
}

func TestToolErrorTruncatesStderr(t *testing.T) {
	err := &ToolError{Name: "ffmpeg", ExitCode: 1, Stderr: strings.Repeat("é", 300)}
	assert.Equal(t, "FFmpeg error: "+strings.Repeat("é", 200), UserMessage(err))
}
