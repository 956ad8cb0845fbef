package importer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneArgs(t *testing.T) {
	require.Equal(t,
		[]string{"clone", "--quiet", "--", "--upload-pack=touch pwned", "/tmp/x/jtd111"},
		cloneArgs("--upload-pack=touch pwned", "/tmp/x/jtd111"))
	require.Equal(t,
		[]string{"clone", "--quiet", "--", "https://example.com/jtd111.git", "/tmp/x/jtd111"},
		cloneArgs("https://example.com/jtd111.git", "/tmp/x/jtd111"))
}
