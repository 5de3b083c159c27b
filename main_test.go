package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abgoyal/image-patcher/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(config.New())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestMissingCredentialsFailBeforeNetwork(t *testing.T) {
	t.Setenv("PAT", "")
	t.Setenv("GITHUB_TOKEN", "")

	for _, args := range [][]string{
		{"patch", t.TempDir()},
		{"patch-all", "--root", t.TempDir()},
		{"delete-untagged", t.TempDir()},
	} {
		_, err := execute(t, args...)
		assert.ErrorIs(t, err, config.ErrAuthMissing, args[0])
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "patch", t.TempDir(), "--log-level", "chatty")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestPatchRequiresDirectory(t *testing.T) {
	_, err := execute(t, "patch")
	assert.Error(t, err)
}

func TestDeleteUntaggedSetupSkipsBuildTool(t *testing.T) {
	t.Setenv("PAT", "token")
	t.Setenv("DOCKER_HOST", "not-a-docker-host")

	p, _, err := setup(context.Background(), config.New(), false)
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, _, err = setup(context.Background(), config.New(), true)
	assert.ErrorContains(t, err, "failed to create docker client")
}
