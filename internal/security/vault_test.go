package security

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVault(t *testing.T, secret string, c Cipher) *Vault {
	t.Helper()
	key, err := DeriveVaultKey(secret)
	require.NoError(t, err)
	v, err := NewVault(key, c)
	require.NoError(t, err)
	return v
}

func TestVault_RoundTrip(t *testing.T) {
	for _, c := range []Cipher{CipherAES256GCM, CipherXChaCha20Poly1305} {
		t.Run(string(c), func(t *testing.T) {
			v := newVault(t, "round-trip-secret", c)
			for _, in := range [][]byte{
				[]byte(""),
				[]byte("hello"),
				[]byte(`{"qa":[{"q":"Tell me about yourself","a":"I build things"}]}`),
				[]byte(strings.Repeat("x", 64*1024)),
			} {
				env, err := v.Encrypt(in)
				require.NoError(t, err)
				assert.Len(t, strings.Split(env, ":"), 3)
				out, err := v.Decrypt(env)
				require.NoError(t, err)
				assert.Equal(t, len(in), len(out))
				assert.Equal(t, string(in), string(out))
			}
		})
	}
}

func TestVault_FreshNoncePerEncryption(t *testing.T) {
	v := NewTestVault()
	a, err := v.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := v.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, strings.Split(a, ":")[0], strings.Split(b, ":")[0])
}

func TestVault_OpensEnvelopesFromEitherCipher(t *testing.T) {
	gcm := newVault(t, "shared-secret", CipherAES256GCM)
	xc := newVault(t, "shared-secret", CipherXChaCha20Poly1305)

	env, err := xc.Encrypt([]byte("sealed with xchacha"))
	require.NoError(t, err)
	out, err := gcm.Decrypt(env)
	require.NoError(t, err)
	assert.Equal(t, "sealed with xchacha", string(out))

	env, err = gcm.Encrypt([]byte("sealed with gcm"))
	require.NoError(t, err)
	out, err = xc.Decrypt(env)
	require.NoError(t, err)
	assert.Equal(t, "sealed with gcm", string(out))
}

func TestVault_WrongKey(t *testing.T) {
	env, err := newVault(t, "key-one", CipherAES256GCM).Encrypt([]byte("secret payload"))
	require.NoError(t, err)
	_, err = newVault(t, "key-two", CipherAES256GCM).Decrypt(env)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestVault_AnyFlippedCharacterFails(t *testing.T) {
	for _, c := range []Cipher{CipherAES256GCM, CipherXChaCha20Poly1305} {
		t.Run(string(c), func(t *testing.T) {
			v := newVault(t, "flip-secret", c)
			env, err := v.Encrypt([]byte("the candidate answered every question"))
			require.NoError(t, err)

			rng := rand.New(rand.NewPCG(1, 2))
			for i := 0; i < 200; i++ {
				pos := rng.IntN(len(env))
				if env[pos] == ':' {
					continue
				}
				b := []byte(env)
				b[pos] ^= 1 << rng.IntN(7)
				_, err := v.Decrypt(string(b))
				assert.ErrorIs(t, err, ErrIntegrity, "flip at %d", pos)
			}
		})
	}
}

func TestVault_MalformedEnvelopes(t *testing.T) {
	v := NewTestVault()
	env, err := v.Encrypt([]byte("payload"))
	require.NoError(t, err)
	parts := strings.Split(env, ":")

	testCases := []struct {
		name     string
		envelope string
	}{
		{"empty", ""},
		{"no separators", "deadbeef"},
		{"two parts", parts[0] + ":" + parts[1]},
		{"four parts", env + ":00"},
		{"non-hex nonce", "zz" + parts[0][2:] + ":" + parts[1] + ":" + parts[2]},
		{"upper-case hex", strings.ToUpper(env)},
		{"odd-length ciphertext", env + "0"},
		{"short nonce", parts[0][:10] + ":" + parts[1] + ":" + parts[2]},
		{"short tag", parts[0] + ":" + parts[1][:8] + ":" + parts[2]},
		{"swapped tag and ciphertext", parts[0] + ":" + parts[2] + ":" + parts[1]},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Decrypt(tc.envelope)
			assert.ErrorIs(t, err, ErrIntegrity)
		})
	}
}

func TestVault_OpenDetectsCorruption(t *testing.T) {
	v := NewTestVault()
	plaintext := []byte(`[{"question":"Why us?","answer":"Because."}]`)
	hash := ContentHash(plaintext)
	env, err := v.Encrypt(plaintext)
	require.NoError(t, err)

	out, err := v.Open(env, hash)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)

	// Corrupt one ciphertext character, then restore it and corrupt the hash instead.
	b := []byte(env)
	last := len(b) - 1
	orig := b[last]
	if orig == '0' {
		b[last] = '1'
	} else {
		b[last] = '0'
	}
	_, err = v.Open(string(b), hash)
	assert.ErrorIs(t, err, ErrIntegrity)

	b[last] = orig
	_, err = v.Open(string(b), hash[:len(hash)-1]+"x")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ContentHash(nil))
	assert.Equal(t, ContentHash([]byte("abc")), NewTestVault().ContentHash([]byte("abc")))
	assert.NoError(t, VerifyContentHash([]byte("abc"), ContentHash([]byte("abc"))))
	assert.ErrorIs(t, VerifyContentHash([]byte("abd"), ContentHash([]byte("abc"))), ErrHashMismatch)
	assert.ErrorIs(t, VerifyContentHash([]byte("abc"), ""), ErrHashMismatch)
}

func TestNewVault_Invalid(t *testing.T) {
	_, err := DeriveVaultKey("")
	assert.ErrorIs(t, err, ErrInvalidVaultKey)

	_, err = NewVault(VaultKey{}, CipherAES256GCM)
	assert.ErrorIs(t, err, ErrInvalidVaultKey)

	key, err := DeriveVaultKey("k")
	require.NoError(t, err)
	_, err = NewVault(key, Cipher("rot13"))
	assert.Error(t, err)
}
