package keygen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerateEd25519KeyPair(t *testing.T) {
	t.Parallel()
	kp, err := GenerateEd25519KeyPair("demo")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(kp.PublicKey), "ssh-ed25519 "))

	signer, err := ssh.ParsePrivateKey(kp.PrivateKey)
	require.NoError(t, err)

	pub, _, _, _, err := ssh.ParseAuthorizedKey(kp.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, pub.Marshal(), signer.PublicKey().Marshal())
}

func TestGenerateEd25519KeyPair_Unique(t *testing.T) {
	t.Parallel()
	a, err := GenerateEd25519KeyPair("a")
	require.NoError(t, err)
	b, err := GenerateEd25519KeyPair("b")
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey, b.PublicKey)
}
