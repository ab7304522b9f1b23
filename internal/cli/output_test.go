package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/learnsync/internal/config"
	"github.com/roach88/learnsync/internal/conflict"
	"github.com/roach88/learnsync/internal/engine"
	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/offline"
	"github.com/roach88/learnsync/internal/store"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(CodeQuota, "storage quota exceeded", map[string]int64{"budget": 512})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E003", resp.Error.Code)
	assert.Equal(t, "storage quota exceeded", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

type countView struct{ N int }

func (v countView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d items\n", v.N)
	return err
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("Sync queue cleared"))
	assert.Equal(t, "Sync queue cleared\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success(countView{N: 3}))
	assert.Equal(t, "3 items\n", buf.String(), "text views render themselves")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error(CodeStorage, "failed to open database", "disk full"))
	assert.Contains(t, buf.String(), "Error [E002]: failed to open database")
	assert.NotContains(t, buf.String(), "Details:")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error(CodeStorage, "failed to open database", "disk full"))
	assert.Contains(t, buf.String(), "Details: disk full")
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail(ExitFailure, "sync failed", engine.ErrSyncInProgress)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, engine.ErrSyncInProgress)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeSyncInProgress, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "sync failed")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, diag := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: diag,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("database ready: %s", "learn.db")

			assert.Empty(t, out.String(), "diagnostics never reach stdout")
			if tt.wantLog {
				assert.Contains(t, diag.String(), "database ready: learn.db")
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad flag"))))
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"quota", fmt.Errorf("put: %w", store.ErrStorageQuotaExceeded), CodeQuota},
		{"store", store.ErrStorageUnavailable, CodeStorage},
		{"not initialized", offline.ErrNotInitialized, CodeStorage},
		{"in progress", engine.ErrSyncInProgress, CodeSyncInProgress},
		{"conflict missing", conflict.ErrConflictNotFound, CodeConflict},
		{"bad export", offline.ErrInvalidExport, CodeInvalidInput},
		{"config", config.ErrInvalid, CodeConfig},
		{"other", errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestResultView_Text(t *testing.T) {
	res := model.NewSyncResult(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	res.SyncedItems = 2
	res.Success = false
	res.Errors = []string{"sync note item-3 failed after 2 attempt(s) (version 3): remote down"}

	buf := &bytes.Buffer{}
	require.NoError(t, resultView(res).WriteText(buf))
	assert.Contains(t, buf.String(), "Sync incomplete: 2 synced, 0 conflicts, 1 errors")
	assert.Contains(t, buf.String(), "error: sync note item-3")
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
	assert.Equal(t, "5.0 GiB", humanBytes(5*1024*1024*1024))
}
