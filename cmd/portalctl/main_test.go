package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sentinel-cyber/portal/cmd/portalctl/cli"
)

func TestRunRoutesFileCommandsToStdin(t *testing.T) {
	stdin := strings.NewReader(`{"name": "Helpdesk", "baseRole": "support", "permissions": [
	  {"id": "t1", "category": "support", "action": "read", "resource": "tickets"}
	]}`)
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	code := run(context.Background(), []string{"roles", "validate"}, stdin, stdout, stderr)
	require.Equal(t, cli.ExitOK, code, stderr.String())
	require.Equal(t, "Helpdesk: ok\n", stdout.String())
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := run(context.Background(), []string{"roles", "explode"}, strings.NewReader(""), new(bytes.Buffer), stderr)
	require.Equal(t, cli.ExitError, code)
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunHierarchyCompareNeedsTwoRoles(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := run(context.Background(), []string{"hierarchy", "compare", "admin"}, nil, new(bytes.Buffer), stderr)
	require.Equal(t, cli.ExitError, code)

	stdout := new(bytes.Buffer)
	code = run(context.Background(), []string{"hierarchy", "compare", "manager", "manager"}, nil, stdout, stderr)
	require.Equal(t, cli.ExitOK, code)
	require.Equal(t, "manager and manager rank equally (80)\n", stdout.String())
}

func TestRunBadFlag(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := run(context.Background(), []string{"permissions", "merge", "--bogus"}, strings.NewReader("[]"), new(bytes.Buffer), stderr)
	require.Equal(t, cli.ExitError, code)
}
