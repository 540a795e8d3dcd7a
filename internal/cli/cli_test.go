package cli

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/existflow/keepsession/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestCLI_SessionLifecycle(t *testing.T) {
	srv := httptest.NewServer(server.New(server.NewMemoryStore()).Router())
	defer srv.Close()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("KEEPSESSION_SERVER_URL", srv.URL)

	out := execute(t, "", "whoami")
	assert.Contains(t, out, "Not signed in")

	out = execute(t, "correct horse\n", "signup", "--email", "ada@example.com", "--name", "Ada", "--password-stdin")
	assert.Contains(t, out, "Account created")

	out = execute(t, "correct horse\n", "login", "--email", "ada@example.com", "--password-stdin")
	assert.Contains(t, out, "Signed in as Ada <ada@example.com>")

	out = execute(t, "", "whoami")
	assert.Contains(t, out, "Ada <ada@example.com>")
	assert.Contains(t, out, "member")

	out = execute(t, "", "status")
	assert.Contains(t, out, "Token:    valid")
	assert.Contains(t, out, "Snapshot: Ada <ada@example.com>")
	assert.Contains(t, out, "Extended: valid until", "a verified whoami fills the extended tier")

	out = execute(t, "", "profile", "set", "--company", "Analytical Engines")
	assert.Contains(t, out, "Analytical Engines")

	out = execute(t, "", "refresh")
	assert.Contains(t, out, "Token refreshed")

	out = execute(t, "", "whoami")
	assert.Contains(t, out, "Ada", "the refreshed token is accepted")

	out = execute(t, "", "logout")
	assert.Contains(t, out, "Signed out")

	out = execute(t, "", "whoami")
	assert.Contains(t, out, "Not signed in")
}

func TestCLI_LoginRejected(t *testing.T) {
	srv := httptest.NewServer(server.New(server.NewMemoryStore()).Router())
	defer srv.Close()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("KEEPSESSION_SERVER_URL", srv.URL)

	var out bytes.Buffer
	rootCmd.SetArgs([]string{"login", "--email", "nobody@example.com", "--password-stdin"})
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader("whatever\n"))

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")
}

func TestCLI_Config(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out := execute(t, "", "config", "set", "request_timeout", "20s")
	assert.Contains(t, out, "request_timeout = 20s")

	out = execute(t, "", "config")
	assert.Contains(t, out, "request_timeout: 20s")
}
