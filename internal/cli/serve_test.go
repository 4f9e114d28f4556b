package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/precedent-offline/internal/edge"
)

func TestServeAnswersUntilCancelled(t *testing.T) {
	c := newCLIEnv(t)
	c.origin.SetPage("/api/v1/wards", `{"wards":["Camden Town"]}`)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		status edge.Status
		wards  string
	)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", ConfigPath: c.config, Database: c.db},
		Ready: func(addr string) {
			defer cancel()
			resp, err := http.Get("http://" + addr + edge.StatusPath)
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			assert.NoError(t, json.NewDecoder(resp.Body).Decode(&status))

			resp, err = http.Get("http://" + addr + "/api/v1/wards")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			wards = string(body)
		},
	}

	buf := &bytes.Buffer{}
	cmd := newServeCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--listen", "127.0.0.1:0"})
	cmd.SetContext(ctx)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Serving "+c.origin.URL+" on http://127.0.0.1:")
	assert.Contains(t, buf.String(), "(active)")

	assert.Equal(t, "active", status.State)
	assert.Equal(t, "precedent-v1", status.Generation)
	assert.True(t, status.Durable)
	assert.Equal(t, `{"wards":["Camden Town"]}`, wards)
}

func TestServeWithoutStoreRunsNetworkOnly(t *testing.T) {
	c := newCLIEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var status edge.Status
	opts := &ServeOptions{
		// A directory cannot be opened as a database.
		RootOptions: &RootOptions{Format: "text", ConfigPath: c.config, Database: t.TempDir()},
		Ready: func(addr string) {
			defer cancel()
			resp, err := http.Get("http://" + addr + edge.StatusPath)
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			assert.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		},
	}

	errBuf := &bytes.Buffer{}
	cmd := newServeCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"--listen", "127.0.0.1:0"})
	cmd.SetContext(ctx)

	require.NoError(t, cmd.Execute())
	assert.False(t, status.Durable)
	assert.Contains(t, errBuf.String(), "store unavailable")
}

func TestServeListenError(t *testing.T) {
	c := newCLIEnv(t)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", ConfigPath: c.config, Database: c.db},
	}

	buf := &bytes.Buffer{}
	cmd := newServeCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--listen", "256.0.0.1:bad"})

	err := cmd.Execute()
	assert.Equal(t, "256.0.0.1:bad", opts.Listen)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeEdge)
}
